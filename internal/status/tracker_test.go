package status

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/reconcile"
)

func TestTracker_Record(t *testing.T) {
	tr := NewTracker()

	if tr.Ready() {
		t.Fatal("Expected tracker not ready before first cycle")
	}
	if _, ok := tr.Last(); ok {
		t.Fatal("Expected no report before first cycle")
	}

	finished := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	report := &reconcile.Report{
		CycleID:         "cycle-1",
		FinishedAt:      finished,
		InvalidServices: []string{"web"},
		DeletedServices: 1,
	}
	if err := tr.Record(context.Background(), report); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if !tr.Ready() {
		t.Error("Expected tracker ready after first cycle")
	}
	if tr.Cycles() != 1 {
		t.Errorf("Expected 1 cycle, got %d", tr.Cycles())
	}
	if !tr.LastCycle().Equal(finished) {
		t.Errorf("Expected last cycle %v, got %v", finished, tr.LastCycle())
	}

	last, ok := tr.Last()
	if !ok {
		t.Fatal("Expected a report")
	}
	if last.CycleID != "cycle-1" || last.DeletedServices != 1 {
		t.Errorf("Unexpected report: %+v", last)
	}

	// mutating the returned copy must not affect the tracker
	last.DeletedServices = 99
	again, _ := tr.Last()
	if again.DeletedServices != 1 {
		t.Errorf("Expected stored report unchanged, got %d", again.DeletedServices)
	}
}

func TestTracker_RecordNil(t *testing.T) {
	tr := NewTracker()
	if err := tr.Record(context.Background(), nil); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if tr.Ready() {
		t.Error("Expected nil report to be ignored")
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = tr.Record(context.Background(), &reconcile.Report{CycleID: "c"})
		}()
		go func() {
			defer wg.Done()
			tr.Last()
			tr.Ready()
		}()
	}
	wg.Wait()

	if tr.Cycles() != 10 {
		t.Errorf("Expected 10 cycles, got %d", tr.Cycles())
	}
}
