package memory

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestStore_AddAndHistory(t *testing.T) {
	s := NewStore(20, time.Hour)
	defer s.Close()

	s.AddUserMessage("sess", "what is robbery?")
	s.AddAssistantMessage("sess", "Robbery is defined in 18 U.S.C. § 2113.")

	history := s.History("sess")
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Role != RoleUser || history[1].Role != RoleAssistant {
		t.Errorf("roles = %q, %q", history[0].Role, history[1].Role)
	}

	if s.History("unknown") != nil {
		t.Error("unknown session should have nil history")
	}
}

func TestStore_TrimsToMaxMessages(t *testing.T) {
	s := NewStore(4, time.Hour)
	defer s.Close()

	for i := 0; i < 10; i++ {
		s.AddUserMessage("sess", fmt.Sprintf("message %d", i))
	}

	history := s.History("sess")
	if len(history) != 4 {
		t.Fatalf("expected history trimmed to 4, got %d", len(history))
	}
	if history[0].Content != "message 6" {
		t.Errorf("oldest kept message = %q, want message 6", history[0].Content)
	}
}

func TestStore_RecentHistory(t *testing.T) {
	s := NewStore(20, time.Hour)
	defer s.Close()

	for i := 0; i < 6; i++ {
		s.AddUserMessage("sess", fmt.Sprintf("m%d", i))
	}

	recent := s.RecentHistory("sess", 2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent messages, got %d", len(recent))
	}
	if recent[1].Content != "m5" {
		t.Errorf("latest message = %q", recent[1].Content)
	}
}

func TestStore_ClearSession(t *testing.T) {
	s := NewStore(20, time.Hour)
	defer s.Close()

	s.AddUserMessage("sess", "hello")
	s.ClearSession("sess")
	if s.History("sess") != nil {
		t.Error("cleared session still has history")
	}
}

func TestStore_ExpiresIdleSessions(t *testing.T) {
	s := NewStore(20, time.Nanosecond)
	defer s.Close()

	s.AddUserMessage("sess", "hello")
	time.Sleep(time.Millisecond)
	s.expire()

	if s.History("sess") != nil {
		t.Error("idle session survived expiry")
	}
}

func TestFormatForPrompt(t *testing.T) {
	messages := []Message{
		{Role: RoleUser, Content: "what is robbery?"},
		{Role: RoleAssistant, Content: "See § 2113."},
		{Role: "system", Content: "ignored"},
	}
	out := FormatForPrompt(messages)

	if !strings.Contains(out, "User: what is robbery?") {
		t.Errorf("missing user line: %q", out)
	}
	if !strings.Contains(out, "Assistant: See § 2113.") {
		t.Errorf("missing assistant line: %q", out)
	}
	if strings.Contains(out, "ignored") {
		t.Errorf("unknown role leaked into prompt: %q", out)
	}

	if FormatForPrompt(nil) != "" {
		t.Error("empty history should format to empty string")
	}
}
