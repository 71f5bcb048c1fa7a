package audit

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestRecorderFillsDefaults(t *testing.T) {
	rec := &Recorder{}
	meta := json.RawMessage(`{"amount":"100"}`)
	if err := rec.Log(context.Background(), Entry{Action: "expense.create", ProjectID: "p1", Metadata: meta}); err != nil {
		t.Fatalf("log: %v", err)
	}
	entries := rec.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if !strings.HasPrefix(got.ID, "audit-") || got.CreatedAt.IsZero() {
		t.Fatalf("expected generated id and timestamp, got %+v", got)
	}
	if got.PayloadDigest != DigestJSON(meta) || len(got.PayloadDigest) != 64 {
		t.Fatalf("unexpected digest %q", got.PayloadDigest)
	}
}

func TestDigestJSONEmpty(t *testing.T) {
	if DigestJSON(nil) != "" {
		t.Fatalf("expected empty digest")
	}
}
