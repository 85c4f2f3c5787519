package chatlog

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	log, err := Open(filepath.Join(t.TempDir(), "chat_history.db"))
	if err != nil {
		t.Fatalf("opening chat log: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

func TestLog_RecordAndHistory(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	if err := log.Record(ctx, "sess", "user", "what is robbery?"); err != nil {
		t.Fatalf("recording: %v", err)
	}
	if err := log.Record(ctx, "sess", "assistant", "See 18 U.S.C. § 2113."); err != nil {
		t.Fatalf("recording: %v", err)
	}
	if err := log.Record(ctx, "other", "user", "unrelated"); err != nil {
		t.Fatalf("recording: %v", err)
	}

	entries, err := log.History(ctx, "sess", 10)
	if err != nil {
		t.Fatalf("loading history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Role != "user" || entries[1].Role != "assistant" {
		t.Errorf("entries out of order: %+v", entries)
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("created_at not populated")
	}
}

func TestLog_HistoryLimitKeepsNewest(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := log.Record(ctx, "sess", "user", fmt.Sprintf("m%d", i)); err != nil {
			t.Fatalf("recording: %v", err)
		}
	}

	entries, err := log.History(ctx, "sess", 2)
	if err != nil {
		t.Fatalf("loading history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Newest two, still oldest-first.
	if entries[0].Content != "m3" || entries[1].Content != "m4" {
		t.Errorf("entries = %q, %q", entries[0].Content, entries[1].Content)
	}
}

func TestLog_Feedback(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	id, err := log.RecordFeedback(ctx, Feedback{
		SessionID: "sess",
		Query:     "what is robbery?",
		Answer:    "See § 2113.",
		Rating:    4,
		Comment:   "helpful",
	})
	if err != nil {
		t.Fatalf("recording feedback: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero feedback id")
	}

	if _, err := log.RecordFeedback(ctx, Feedback{SessionID: "sess", Rating: 6}); err == nil {
		t.Error("expected error for out-of-range rating")
	}
	if _, err := log.RecordFeedback(ctx, Feedback{SessionID: "sess", Rating: 0}); err == nil {
		t.Error("expected error for zero rating")
	}

	summary, err := log.Summary(ctx)
	if err != nil {
		t.Fatalf("summarizing: %v", err)
	}
	if summary.Count != 1 {
		t.Errorf("summary count = %d, want 1", summary.Count)
	}
	if summary.AvgRating != 4 {
		t.Errorf("summary avg = %f, want 4", summary.AvgRating)
	}
}

func TestLog_SummaryEmpty(t *testing.T) {
	log := openTestLog(t)

	summary, err := log.Summary(context.Background())
	if err != nil {
		t.Fatalf("summarizing: %v", err)
	}
	if summary.Count != 0 || summary.AvgRating != 0 {
		t.Errorf("empty summary = %+v", summary)
	}
}
