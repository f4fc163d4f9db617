package violation_test

import (
	"reflect"
	"testing"

	"kpid/internal/violation"
)

func TestClusterFoldsNearbyFindings(t *testing.T) {
	entries := []violation.Entry{
		{Second: 10, Decision: violation.DecisionPending, Category: []string{"SARU"}, Label: []string{"a"}},
		{Second: 11, Decision: violation.DecisionPending, Category: []string{"SADIS"}, Label: []string{"b"}},
		{Second: 12, Decision: violation.DecisionPending, Category: []string{"SARU"}, Label: []string{"c"}},
	}

	clustered := violation.Cluster(entries)
	if len(clustered) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clustered))
	}
	got := clustered[0]
	if got.Second != 10 {
		t.Fatalf("expected anchor at 10, got %v", got.Second)
	}
	if !reflect.DeepEqual(got.Category, []string{"SARU", "SADIS"}) {
		t.Fatalf("expected deduped category union, got %v", got.Category)
	}
	if !reflect.DeepEqual(got.Label, []string{"a"}) {
		t.Fatalf("merged entries must contribute categories only, got labels %v", got.Label)
	}
}

func TestClusterWindowMeasuredFromAnchor(t *testing.T) {
	// 11 and 13 are within 3s of each other but 13 is 4s past the anchor
	// at 9, so it starts a new cluster.
	entries := []violation.Entry{
		{Second: 9, Decision: violation.DecisionPending, Category: []string{"SARU"}},
		{Second: 11, Decision: violation.DecisionPending, Category: []string{"SADIS"}},
		{Second: 13, Decision: violation.DecisionPending, Category: []string{"SARU"}},
	}

	clustered := violation.Cluster(entries)
	if len(clustered) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clustered))
	}
	if clustered[0].Second != 9 || clustered[1].Second != 13 {
		t.Fatalf("unexpected anchors: %v, %v", clustered[0].Second, clustered[1].Second)
	}
	if !reflect.DeepEqual(clustered[0].Category, []string{"SARU", "SADIS"}) {
		t.Fatalf("unexpected first cluster categories: %v", clustered[0].Category)
	}
}

func TestClusterExactGapStartsNewCluster(t *testing.T) {
	entries := []violation.Entry{
		{Second: 10, Decision: violation.DecisionPending, Category: []string{"SARU"}},
		{Second: 13, Decision: violation.DecisionPending, Category: []string{"SADIS"}},
	}

	clustered := violation.Cluster(entries)
	if len(clustered) != 2 {
		t.Fatalf("expected an exactly-3s gap to split, got %d clusters", len(clustered))
	}
	if clustered[0].Second != 10 || clustered[1].Second != 13 {
		t.Fatalf("unexpected anchors: %v, %v", clustered[0].Second, clustered[1].Second)
	}
}

func TestClusterSortsUnorderedInput(t *testing.T) {
	entries := []violation.Entry{
		{Second: 50, Decision: violation.DecisionPending, Category: []string{"SADIS"}},
		{Second: 10, Decision: violation.DecisionPending, Category: []string{"SARU"}},
	}

	clustered := violation.Cluster(entries)
	if len(clustered) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clustered))
	}
	if clustered[0].Second != 10 || clustered[1].Second != 50 {
		t.Fatalf("expected ascending anchors, got %v then %v", clustered[0].Second, clustered[1].Second)
	}
}

func TestClusterEmptyInput(t *testing.T) {
	if clustered := violation.Cluster(nil); clustered != nil {
		t.Fatalf("expected nil for empty input, got %v", clustered)
	}
}
