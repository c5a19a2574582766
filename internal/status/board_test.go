package status

import (
	"errors"
	"testing"
	"time"

	"order_dashboard/internal/clock"
	"order_dashboard/internal/remote"
)

func TestBoardClearsOnlySameCategory(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	b := NewBoard(clock.Fixed(at))

	b.Report(CategoryPoll, &remote.Error{Kind: remote.ErrNetwork, Message: "Error: Bad Gateway"})
	a, ok := b.Current()
	if !ok || a.Kind != "network" || a.Message != "Error: Bad Gateway" || !a.At.Equal(at) {
		t.Fatalf("unexpected alert %+v", a)
	}

	if b.Clear(CategoryDeliver) {
		t.Fatalf("deliver success must not clear a poll error")
	}
	if _, ok := b.Current(); !ok {
		t.Fatalf("poll error should remain")
	}
	if !b.Clear(CategoryPoll) {
		t.Fatalf("poll success should clear the poll error")
	}
	if _, ok := b.Current(); ok {
		t.Fatalf("expected no alert")
	}
}

func TestBoardLatestWins(t *testing.T) {
	b := NewBoard(nil)
	b.Report(CategoryPoll, errors.New("first"))
	b.Report(CategoryEstimate, &remote.Error{Kind: remote.ErrActionRejected, Message: "Failed to send time estimate"})

	a, _ := b.Current()
	if a.Category != CategoryEstimate || a.Kind != "rejected" {
		t.Fatalf("unexpected alert %+v", a)
	}
	if b.Clear(CategoryPoll) {
		t.Fatalf("poll clear should not remove estimate alert")
	}
}

func TestBoardUnknownKind(t *testing.T) {
	b := NewBoard(nil)
	a := b.Report(CategoryDeliver, errors.New("boom"))
	if a.Kind != "internal" {
		t.Fatalf("kind = %q", a.Kind)
	}
}
