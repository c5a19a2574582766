package render

import (
	"bytes"
	"errors"
	"testing"

	"order_dashboard/internal/aggregate"
)

func TestBarChartPNG(t *testing.T) {
	days := aggregate.DayCounts{Labels: []string{"5/1/2024", "5/2/2024"}, Counts: []int{2, 1}}

	var buf bytes.Buffer
	if err := BarChartPNG(&buf, "Orders per day", days); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatalf("output is not a PNG (%d bytes)", buf.Len())
	}
}

func TestBarChartPNGSingleDay(t *testing.T) {
	days := aggregate.DayCounts{Labels: []string{"5/1/2024"}, Counts: []int{3}}
	var buf bytes.Buffer
	if err := BarChartPNG(&buf, "", days); err != nil {
		t.Fatalf("render: %v", err)
	}
}

func TestBarChartPNGEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := BarChartPNG(&buf, "", aggregate.DayCounts{}); !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing should be written for empty data")
	}
}
