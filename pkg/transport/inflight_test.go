package transport

import (
	"context"
	"testing"
)

func TestInFlightRegistry(t *testing.T) {
	r := NewInFlightRegistry()

	ctx1, release1 := r.Track(context.Background(), "a")
	ctx2, _ := r.Track(context.Background(), "b")
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}

	release1()
	if ctx1.Err() == nil {
		t.Error("released context should be canceled")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d after release, want 1", r.Len())
	}

	if n := r.CancelAll(); n != 1 {
		t.Errorf("CancelAll = %d, want 1", n)
	}
	if ctx2.Err() == nil {
		t.Error("CancelAll should cancel running operations")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}
