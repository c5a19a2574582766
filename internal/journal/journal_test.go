package journal

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	entries := []Entry{
		{AttemptID: "a1", Kind: KindMarkDelivered, OrderID: "1", Status: StatusFailed, ErrorMsg: "Order not found"},
		{AttemptID: "a2", Kind: KindMarkDelivered, OrderID: "1", Status: StatusSucceeded},
		{AttemptID: "a3", Kind: KindTimeEstimate, OrderID: "2", Detail: "20 minutes", Status: StatusSucceeded},
	}
	for _, e := range entries {
		if err := j.Record(ctx, e); err != nil {
			t.Fatalf("record %s: %v", e.AttemptID, err)
		}
	}

	all, err := j.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(all) != 3 || all[0].AttemptID != "a3" {
		t.Fatalf("unexpected entries %+v", all)
	}

	byOrder, err := j.Recent(ctx, "1", 10)
	if err != nil {
		t.Fatalf("recent by order: %v", err)
	}
	if len(byOrder) != 2 || byOrder[0].Status != StatusSucceeded || byOrder[1].ErrorMsg != "Order not found" {
		t.Fatalf("unexpected entries %+v", byOrder)
	}
}

func TestRecordRequiresAttemptID(t *testing.T) {
	j := openTestJournal(t)
	if err := j.Record(context.Background(), Entry{Kind: KindTimeEstimate, OrderID: "1", Status: StatusSkipped}); err == nil {
		t.Fatalf("expected error for missing attempt id")
	}
}

func TestRecordDuplicateAttempt(t *testing.T) {
	j := openTestJournal(t)
	e := Entry{AttemptID: "dup", Kind: KindTimeEstimate, OrderID: "1", Status: StatusSucceeded}
	if err := j.Record(context.Background(), e); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := j.Record(context.Background(), e); err == nil {
		t.Fatalf("expected unique violation for duplicate attempt id")
	}
}
