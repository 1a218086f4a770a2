package models

import (
	"testing"
	"time"
)

func TestPriorityOrdering(t *testing.T) {
	if !(PriorityCritical > PriorityHigh && PriorityHigh > PriorityNormal && PriorityNormal > PriorityLow) {
		t.Fatalf("priority constants out of order")
	}
}

func TestParsePriority(t *testing.T) {
	cases := map[string]Priority{
		"low":      PriorityLow,
		"Normal":   PriorityNormal,
		" high ":   PriorityHigh,
		"CRITICAL": PriorityCritical,
		"":         PriorityNormal,
	}
	for raw, want := range cases {
		got, err := ParsePriority(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s, got %s", raw, want, got)
		}
	}

	if _, err := ParsePriority("urgent"); err == nil {
		t.Fatalf("expected error for unknown priority")
	}
}

func TestRecordID(t *testing.T) {
	if _, ok := (Record{}).RecordID(); ok {
		t.Fatalf("empty record should have no id")
	}
	if id, ok := (Record{"id": "abc"}).RecordID(); !ok || id != "abc" {
		t.Fatalf("expected id abc, got %q ok=%v", id, ok)
	}
	if id, ok := (Record{"id": 42}).RecordID(); !ok || id != "42" {
		t.Fatalf("expected numeric id coerced to 42, got %q", id)
	}
	if _, ok := (Record{"id": ""}).RecordID(); ok {
		t.Fatalf("blank id should not count")
	}
}

func TestSyncItemExhausted(t *testing.T) {
	item := SyncItem{RetryCount: 2, MaxRetries: 3}
	if item.Exhausted() {
		t.Fatalf("2/3 retries should not be exhausted")
	}
	item.RetryCount = 3
	if !item.Exhausted() {
		t.Fatalf("3/3 retries should be exhausted")
	}
}

func TestSyncConfigPatchApply(t *testing.T) {
	cfg := DefaultSyncConfig()

	retries := 7
	interval := time.Minute
	patch := SyncConfigPatch{MaxRetries: &retries, SyncInterval: &interval}

	got := patch.Apply(cfg)
	if got.MaxRetries != 7 || got.SyncInterval != time.Minute {
		t.Fatalf("patch not applied: %+v", got)
	}
	if got.RetryBaseDelay != cfg.RetryBaseDelay || got.BatchSize != cfg.BatchSize {
		t.Fatalf("untouched fields changed: %+v", got)
	}
}
