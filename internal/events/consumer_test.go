package events

import (
	"encoding/json"
	"testing"
	"time"

	"order_dashboard/internal/model"

	"go.uber.org/zap"
)

type fakeApplier struct {
	delivered []string
	sent      map[string]model.SentEstimate
}

func (f *fakeApplier) ApplyDelivered(id string) bool {
	f.delivered = append(f.delivered, id)
	return true
}

func (f *fakeApplier) RecordSent(id string, rec model.SentEstimate) bool {
	if f.sent == nil {
		f.sent = map[string]model.SentEstimate{}
	}
	f.sent[id] = rec
	return true
}

func mustJSON(t *testing.T, e ActionEvent) []byte {
	t.Helper()
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestConsumerAppliesPeerEvents(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	fa := &fakeApplier{}
	c := &Consumer{source: "me", apply: fa, log: zap.NewNop()}

	if err := c.handle(mustJSON(t, ActionEvent{EventID: "e1", Kind: KindDelivered, Source: "peer", OrderID: "1", OccurredAt: at})); err != nil {
		t.Fatalf("handle delivered: %v", err)
	}
	err := c.handle(mustJSON(t, ActionEvent{EventID: "e2", Kind: KindEstimateSent, Source: "peer", OrderID: "2",
		Minutes: model.Estimate30, ExpectedTime: "30 minutes", OccurredAt: at}))
	if err != nil {
		t.Fatalf("handle estimate: %v", err)
	}

	if len(fa.delivered) != 1 || fa.delivered[0] != "1" {
		t.Fatalf("delivered = %v", fa.delivered)
	}
	if rec := fa.sent["2"]; rec.Value != model.Estimate30 || !rec.SentAt.Equal(at) {
		t.Fatalf("sent = %+v", rec)
	}
}

func TestConsumerSkipsOwnAndInvalidEvents(t *testing.T) {
	fa := &fakeApplier{}
	c := &Consumer{source: "me", apply: fa, log: zap.NewNop()}

	own := ActionEvent{EventID: "e1", Kind: KindDelivered, Source: "me", OrderID: "1", OccurredAt: time.Now()}
	if err := c.handle(mustJSON(t, own)); err != nil {
		t.Fatalf("own event: %v", err)
	}
	if err := c.handle([]byte("not json")); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := c.handle(mustJSON(t, ActionEvent{Kind: KindDelivered, OrderID: "1"})); err == nil {
		t.Fatalf("expected validation error")
	}
	if len(fa.delivered) != 0 || len(fa.sent) != 0 {
		t.Fatalf("nothing should be applied: %+v", fa)
	}
}

func TestNewConsumerUsesConfiguredGroup(t *testing.T) {
	// 进程标识每次启动都不同，消费组不能跟着变
	for _, source := range []string{"run-1", "run-2"} {
		c := NewConsumer([]string{"127.0.0.1:1"}, "order-dashboard-actions", "dashboard-kitchen", source, &fakeApplier{}, nil)
		if got := c.r.Config().GroupID; got != "dashboard-kitchen" {
			t.Fatalf("source %s: group id = %q", source, got)
		}
		if c.source != source {
			t.Fatalf("source = %q", c.source)
		}
		_ = c.Close()
	}
}
