package lifecycle

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dipperhq/dippershell/internal/backend"
)

func TestStatePortUnsetThenSet(t *testing.T) {
	s := NewState()
	if _, ok := s.Port(); ok {
		t.Fatal("port reported before setup")
	}
	s.setPort(8000)
	port, ok := s.Port()
	if !ok || port != 8000 {
		t.Fatalf("port: got %d ok=%v", port, ok)
	}
}

func TestTakeProcessClearsSlot(t *testing.T) {
	s := NewState()
	if h := s.TakeProcess(); h != nil {
		t.Fatal("empty slot returned a handle")
	}
	h := &backend.Handle{}
	s.setProcess(h)
	if got := s.TakeProcess(); got != h {
		t.Fatal("first take did not return the handle")
	}
	if got := s.TakeProcess(); got != nil {
		t.Fatal("second take returned a handle; slot not cleared")
	}
}

func TestTakeProcessRaceGivesHandleToExactlyOne(t *testing.T) {
	// Window-close and app-exit race on the slot; only one trigger may
	// receive the handle.
	for range 100 {
		s := NewState()
		s.setProcess(&backend.Handle{})
		var got atomic.Int32
		var wg sync.WaitGroup
		for range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if s.TakeProcess() != nil {
					got.Add(1)
				}
			}()
		}
		wg.Wait()
		if got.Load() != 1 {
			t.Fatalf("handle taken %d times", got.Load())
		}
	}
}
