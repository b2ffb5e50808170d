package todo

import "testing"

func TestStoreReplaceIsFullReplacement(t *testing.T) {
	s := NewStore([]Item{{ID: "1", Content: "old", Status: StatusPending}})

	err := s.Replace([]Item{
		{ID: "2", Content: "write tests", Status: StatusInProgress, Priority: PriorityHigh},
		{ID: "3", Content: "ship", Status: StatusCompleted},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := s.Get()
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0].ID != "2" || got[1].ID != "3" {
		t.Errorf("unexpected ids: %+v", got)
	}
}

func TestStoreSummary(t *testing.T) {
	s := NewStore([]Item{
		{ID: "a", Content: "a", Status: StatusCompleted},
		{ID: "b", Content: "b", Status: StatusInProgress},
		{ID: "c", Content: "c", Status: StatusPending},
		{ID: "d", Content: "d", Status: StatusCancelled},
	})
	if got, want := s.Summary(), "1/4 completed, 1 in progress"; got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}

	empty := NewStore(nil)
	if got, want := empty.Summary(), "0/0 completed, 0 in progress"; got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}
}

func TestStoreReplaceRejectsInvalid(t *testing.T) {
	s := NewStore([]Item{{ID: "keep", Content: "keep", Status: StatusPending}})

	tests := []struct {
		name string
		item Item
	}{
		{"missing id", Item{Content: "x", Status: StatusPending}},
		{"missing content", Item{ID: "x", Status: StatusPending}},
		{"bad status", Item{ID: "x", Content: "x", Status: "done"}},
		{"bad priority", Item{ID: "x", Content: "x", Status: StatusPending, Priority: "urgent"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Replace([]Item{tt.item}); err == nil {
				t.Fatal("expected validation error")
			}
			if got := s.Get(); len(got) != 1 || got[0].ID != "keep" {
				t.Errorf("store changed after failed replace: %+v", got)
			}
		})
	}
}

func TestStoreGetReturnsCopy(t *testing.T) {
	s := NewStore([]Item{{ID: "1", Content: "x", Status: StatusPending}})
	items := s.Get()
	items[0].Content = "mutated"
	if s.Get()[0].Content != "x" {
		t.Error("Get must not expose internal slice")
	}
}
