package aggregate

import (
	"testing"
	"time"

	"order_dashboard/internal/model"
)

func at(y int, m time.Month, d, h int) model.Order {
	return model.Order{CreatedAt: time.Date(y, m, d, h, 0, 0, 0, time.UTC)}
}

func TestCountsByDay(t *testing.T) {
	orders := []model.Order{
		at(2024, 5, 1, 9),
		at(2024, 5, 2, 10),
		at(2024, 5, 1, 18),
		{ID: "no-timestamp"},
	}
	got := CountsByDay(orders, time.UTC)

	if len(got.Labels) != 2 || got.Labels[0] != "5/1/2024" || got.Labels[1] != "5/2/2024" {
		t.Fatalf("labels = %v", got.Labels)
	}
	m := got.Map()
	if m["5/1/2024"] != 2 || m["5/2/2024"] != 1 {
		t.Fatalf("counts = %v", m)
	}
}

func TestCountsByDayInsertionOrder(t *testing.T) {
	orders := []model.Order{at(2024, 5, 3, 9), at(2024, 5, 1, 9), at(2024, 5, 3, 10), at(2024, 5, 2, 9)}
	got := CountsByDay(orders, time.UTC)
	want := []string{"5/3/2024", "5/1/2024", "5/2/2024"}
	for i := range want {
		if got.Labels[i] != want[i] {
			t.Fatalf("labels = %v, want %v", got.Labels, want)
		}
	}
	if got.Counts[0] != 2 {
		t.Fatalf("counts = %v", got.Counts)
	}
}

func TestCountsByDayUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	got := CountsByDay([]model.Order{at(2024, 5, 2, 3)}, loc)
	if got.Labels[0] != "5/1/2024" {
		t.Fatalf("label = %q", got.Labels[0])
	}
}

func TestSummarize(t *testing.T) {
	orders := []model.Order{at(2024, 5, 1, 9), at(2024, 5, 1, 12), at(2024, 5, 2, 9)}
	got := Summarize(orders, time.UTC)
	want := Summary{Total: 3, BestDayLabel: "5/1/2024", BestDayCount: 2}
	if got != want {
		t.Fatalf("summary = %+v, want %+v", got, want)
	}
}

func TestSummarizeTieTakesFirstEncountered(t *testing.T) {
	orders := []model.Order{at(2024, 5, 2, 9), at(2024, 5, 1, 9), at(2024, 5, 1, 10), at(2024, 5, 2, 10)}
	got := Summarize(orders, time.UTC)
	if got.BestDayLabel != "5/2/2024" || got.BestDayCount != 2 {
		t.Fatalf("summary = %+v", got)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	got := Summarize([]model.Order{}, time.UTC)
	want := Summary{Total: 0, BestDayLabel: "N/A", BestDayCount: 0}
	if got != want {
		t.Fatalf("summary = %+v", got)
	}
}

func TestDetail(t *testing.T) {
	days := CountsByDay([]model.Order{at(2024, 5, 1, 9), at(2024, 5, 1, 10)}, time.UTC)
	d, ok := days.Detail("5/1/2024")
	if !ok || d.Orders != 2 {
		t.Fatalf("detail = %+v, %v", d, ok)
	}
	if _, ok := days.Detail("5/9/2024"); ok {
		t.Fatalf("unexpected detail for unknown date")
	}
}
