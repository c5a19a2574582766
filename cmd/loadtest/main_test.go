package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestFanOutAndSummarize(t *testing.T) {
	var sent atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sent.Add(1) == 1 {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	results := fanOut(20, 5, func(int) Result {
		return call(srv.Client(), http.MethodPost, srv.URL, nil)
	})
	got := Summarize(results)
	if got[http.StatusOK] != 1 || got[http.StatusConflict] != 19 {
		t.Fatalf("summary = %v", got)
	}
}

func TestSummarizeCountsTransportErrors(t *testing.T) {
	got := Summarize([]Result{{Err: errors.New("refused")}, {Status: 429}})
	if got[0] != 1 || got[429] != 1 {
		t.Fatalf("summary = %v", got)
	}
}
