package violation

import "sort"

// clusterWindow is the gap in seconds at which a finding no longer folds
// into the cluster anchored before it. A gap of exactly clusterWindow
// starts a new cluster.
const clusterWindow = 3.0

// Cluster folds findings that occur close together into a single finding.
//
// Entries are walked in ascending second order. The first entry anchors a
// cluster; every following entry strictly within clusterWindow of the anchor
// merges into it, contributing only its categories. An entry at or past the
// window starts a new cluster. Category lists are deduplicated preserving
// first-seen order.
func Cluster(entries []Entry) []Entry {
	if len(entries) == 0 {
		return nil
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Second < sorted[j].Second
	})

	var clustered []Entry
	anchor := cloneEntry(sorted[0])
	for _, entry := range sorted[1:] {
		if entry.Second-anchor.Second < clusterWindow {
			anchor.Category = append(anchor.Category, entry.Category...)
			continue
		}
		anchor.Category = dedupe(anchor.Category)
		clustered = append(clustered, anchor)
		anchor = cloneEntry(entry)
	}
	anchor.Category = dedupe(anchor.Category)
	clustered = append(clustered, anchor)
	return clustered
}

func cloneEntry(entry Entry) Entry {
	cp := entry
	cp.Category = append([]string(nil), entry.Category...)
	cp.Label = append([]string(nil), entry.Label...)
	return cp
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
