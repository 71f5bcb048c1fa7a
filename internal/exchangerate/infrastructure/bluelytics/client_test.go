package bluelytics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestClient_FetchParsesBlueSell(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("unexpected method %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"oficial":{"value_avg":850.5,"value_sell":870,"value_buy":831},"blue":{"value_avg":1215,"value_sell":1230.5,"value_buy":1200},"last_update":"2026-05-01T10:00:00-03:00"}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	value, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !value.Equal(decimal.RequireFromString("1230.5")) {
		t.Fatalf("unexpected value %s", value)
	}
}

func TestClient_FetchErrorsOnStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error on 502")
	}
}

func TestClient_FetchErrorsOnMissingField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"oficial":{"value_sell":870}}`))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, time.Second)
	if _, err := client.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error when blue quote is missing")
	}
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	if _, err := NewClient("ftp://example", time.Second); err == nil {
		t.Fatalf("expected invalid url error")
	}
	client, err := NewClient("", 0)
	if err != nil || client.url != DefaultURL {
		t.Fatalf("expected default url, got %v %v", client, err)
	}
}
