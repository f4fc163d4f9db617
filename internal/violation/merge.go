package violation

import (
	"math"
	"sort"
)

// Merge combines visual findings with audio hits into a single timeline.
//
// Visual entries seed the timeline keyed by their integer second. Each audio
// hit then attaches to the entry at floor(time) when one exists, otherwise to
// the entry at ceil(time), otherwise it becomes a new audio-only entry at
// floor(time). An audio hit never attaches to both neighbors.
//
// The result is sorted ascending by second.
func Merge(visual []Entry, audio []AudioHit) []Entry {
	bySecond := make(map[int]*Entry, len(visual))
	var order []int

	for _, entry := range visual {
		second := int(entry.Second)
		existing, ok := bySecond[second]
		if !ok {
			cp := entry
			cp.Second = float64(second)
			cp.Category = append([]string(nil), entry.Category...)
			cp.Label = append([]string(nil), entry.Label...)
			bySecond[second] = &cp
			order = append(order, second)
			continue
		}
		existing.Category = append(existing.Category, entry.Category...)
		existing.Label = append(existing.Label, entry.Label...)
	}

	for _, hit := range audio {
		floor := int(math.Floor(hit.Time))
		ceil := int(math.Ceil(hit.Time))
		if entry, ok := bySecond[floor]; ok {
			entry.Category = append(entry.Category, AudioCategory)
			entry.Label = append(entry.Label, AudioLabel)
		} else if entry, ok := bySecond[ceil]; ok {
			entry.Category = append(entry.Category, AudioCategory)
			entry.Label = append(entry.Label, AudioLabel)
		} else {
			bySecond[floor] = &Entry{
				Second:   float64(floor),
				Decision: DecisionPending,
				Category: []string{AudioCategory},
				Label:    []string{AudioLabel},
			}
			order = append(order, floor)
		}
	}

	sort.Ints(order)
	merged := make([]Entry, 0, len(order))
	for _, second := range order {
		merged = append(merged, *bySecond[second])
	}
	return merged
}
