package violation_test

import (
	"reflect"
	"testing"

	"kpid/internal/violation"
)

func TestMergeAttachesAudioToFloorFirst(t *testing.T) {
	visual := []violation.Entry{
		{Second: 10, Decision: violation.DecisionPending, Category: []string{"SARU"}, Label: []string{"adult content"}},
	}
	audio := []violation.AudioHit{{Word: "anjing", Time: 10.6}}

	merged := violation.Merge(visual, audio)
	if len(merged) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(merged))
	}
	got := merged[0]
	if got.Second != 10 {
		t.Fatalf("expected second 10, got %v", got.Second)
	}
	if !reflect.DeepEqual(got.Category, []string{"SARU", "SARA"}) {
		t.Fatalf("unexpected categories: %v", got.Category)
	}
	if !reflect.DeepEqual(got.Label, []string{"adult content", "kata_kasar"}) {
		t.Fatalf("unexpected labels: %v", got.Label)
	}
}

func TestMergeFallsBackToCeil(t *testing.T) {
	visual := []violation.Entry{
		{Second: 11, Decision: violation.DecisionPending, Category: []string{"SADIS"}, Label: []string{"violence"}},
	}
	audio := []violation.AudioHit{{Word: "bangsat", Time: 10.4}}

	merged := violation.Merge(visual, audio)
	if len(merged) != 1 {
		t.Fatalf("expected audio hit to fold into the ceil entry, got %d entries", len(merged))
	}
	if !reflect.DeepEqual(merged[0].Category, []string{"SADIS", "SARA"}) {
		t.Fatalf("unexpected categories: %v", merged[0].Category)
	}
}

func TestMergeNeverAttachesToBothNeighbors(t *testing.T) {
	visual := []violation.Entry{
		{Second: 10, Decision: violation.DecisionPending, Category: []string{"SARU"}, Label: []string{"a"}},
		{Second: 11, Decision: violation.DecisionPending, Category: []string{"SADIS"}, Label: []string{"b"}},
	}
	audio := []violation.AudioHit{{Word: "kampret", Time: 10.5}}

	merged := violation.Merge(visual, audio)
	if len(merged) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(merged))
	}
	if !reflect.DeepEqual(merged[0].Category, []string{"SARU", "SARA"}) {
		t.Fatalf("floor entry should take the hit: %v", merged[0].Category)
	}
	if !reflect.DeepEqual(merged[1].Category, []string{"SADIS"}) {
		t.Fatalf("ceil entry must stay untouched: %v", merged[1].Category)
	}
}

func TestMergeCreatesAudioOnlyEntry(t *testing.T) {
	audio := []violation.AudioHit{{Word: "goblok", Time: 42.7}}

	merged := violation.Merge(nil, audio)
	if len(merged) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(merged))
	}
	got := merged[0]
	if got.Second != 42 {
		t.Fatalf("expected audio-only entry at floor second 42, got %v", got.Second)
	}
	if got.Decision != violation.DecisionPending {
		t.Fatalf("expected pending decision, got %s", got.Decision)
	}
	if !reflect.DeepEqual(got.Category, []string{"SARA"}) || !reflect.DeepEqual(got.Label, []string{"kata_kasar"}) {
		t.Fatalf("unexpected markers: %v %v", got.Category, got.Label)
	}
}

func TestMergeFoldsDuplicateVisualSeconds(t *testing.T) {
	visual := []violation.Entry{
		{Second: 5, Decision: violation.DecisionPending, Category: []string{"SARU"}, Label: []string{"a"}},
		{Second: 5.0, Decision: violation.DecisionPending, Category: []string{"SADIS"}, Label: []string{"b"}},
	}

	merged := violation.Merge(visual, nil)
	if len(merged) != 1 {
		t.Fatalf("expected duplicate seconds folded, got %d entries", len(merged))
	}
	if !reflect.DeepEqual(merged[0].Category, []string{"SARU", "SADIS"}) {
		t.Fatalf("unexpected categories: %v", merged[0].Category)
	}
}

func TestMergeSortsBySecond(t *testing.T) {
	visual := []violation.Entry{
		{Second: 30, Decision: violation.DecisionPending, Category: []string{"SARU"}},
		{Second: 10, Decision: violation.DecisionPending, Category: []string{"SADIS"}},
	}
	audio := []violation.AudioHit{{Word: "bego", Time: 20.2}}

	merged := violation.Merge(visual, audio)
	if len(merged) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(merged))
	}
	for i, want := range []float64{10, 20, 30} {
		if merged[i].Second != want {
			t.Fatalf("entry %d: expected second %v, got %v", i, want, merged[i].Second)
		}
	}
}

func TestMergeEmptyInputs(t *testing.T) {
	if merged := violation.Merge(nil, nil); len(merged) != 0 {
		t.Fatalf("expected empty result, got %v", merged)
	}
}
