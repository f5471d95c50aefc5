package utility

import (
	"sync"
	"testing"
	"time"
)

func TestUtility_GetExecutionID(t *testing.T) {
	id1 := GetExecutionID()
	id2 := GetExecutionID()

	if id1 != id2 {
		t.Error("Expected same ExecutionID")
	}

	if id1.Version() != 7 {
		t.Errorf("Expected UUID v7, got v%d", id1.Version())
	}
}

func TestUtility_ResetExecutionID(t *testing.T) {
	oldID := GetExecutionID()
	newID := ResetExecutionID()

	if oldID == newID {
		t.Error("ResetExecutionID didn't change ID")
	}
	if GetExecutionID() != newID {
		t.Error("GetExecutionID doesn't return new ID")
	}
}

func TestUtility_CreateTraceIDUniqueness(t *testing.T) {
	const n = 5000
	ids := make(map[TraceID]bool, n)

	for i := 0; i < n; i++ {
		id := CreateTraceID()
		if ids[id] {
			t.Fatalf("Duplicate TraceID: %d", id)
		}
		ids[id] = true
	}
}

func TestUtility_ParseTraceID(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := CreateTraceID()

	ts, machine, _ := ParseTraceID(id)
	if ts.Before(before) {
		t.Errorf("Parsed timestamp %v is before %v", ts, before)
	}
	if machine != machineID {
		t.Errorf("Expected machine %d, got %d", machineID, machine)
	}
}

func TestUtility_SequenceConcurrent(t *testing.T) {
	const goroutines = 50
	const perGoroutine = 100

	var seq Sequence
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int64]bool, goroutines*perGoroutine)

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id := seq.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != goroutines*perGoroutine {
		t.Errorf("Expected %d unique ids, got %d", goroutines*perGoroutine, len(seen))
	}
	if seq.Last() != goroutines*perGoroutine {
		t.Errorf("Expected last id %d, got %d", goroutines*perGoroutine, seq.Last())
	}
}
