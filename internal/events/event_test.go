package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		e       ActionEvent
		wantErr bool
	}{
		{"delivered", ActionEvent{EventID: "e1", Kind: KindDelivered, OrderID: "1", OccurredAt: now}, false},
		{"estimate", ActionEvent{EventID: "e2", Kind: KindEstimateSent, OrderID: "1", Minutes: 10, ExpectedTime: "10 minutes", OccurredAt: now}, false},
		{"estimate with bad minutes", ActionEvent{EventID: "e7", Kind: KindEstimateSent, OrderID: "1", Minutes: 15, ExpectedTime: "15 minutes", OccurredAt: now}, true},
		{"estimate without time", ActionEvent{EventID: "e3", Kind: KindEstimateSent, OrderID: "1", Minutes: 10, OccurredAt: now}, true},
		{"missing id", ActionEvent{Kind: KindDelivered, OrderID: "1", OccurredAt: now}, true},
		{"missing order", ActionEvent{EventID: "e4", Kind: KindDelivered, OccurredAt: now}, true},
		{"unknown kind", ActionEvent{EventID: "e5", Kind: "order.cancelled", OrderID: "1", OccurredAt: now}, true},
		{"missing time", ActionEvent{EventID: "e6", Kind: KindDelivered, OrderID: "1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.e.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	e := ActionEvent{EventID: "e1", Kind: KindDelivered, OrderID: "42", OccurredAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	b, err := encode(e)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m["kind"] != "order.delivered" || m["order_id"] != "42" {
		t.Fatalf("payload = %s", b)
	}
	if _, ok := m["minutes"]; ok {
		t.Fatalf("minutes should be omitted for delivered events")
	}
	if _, ok := m["expected_time"]; ok {
		t.Fatalf("expected_time should be omitted for delivered events")
	}
}

func TestPublishRejectsInvalidEvent(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "test", "dash-1")
	defer p.Close()
	if err := p.Publish(context.Background(), ActionEvent{}); err == nil {
		t.Fatalf("expected validation error before any network call")
	}
}
