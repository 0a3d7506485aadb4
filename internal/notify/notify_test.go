package notify

import (
	"testing"

	"github.com/mongohaul/mongohaul/internal/config"
	"github.com/mongohaul/mongohaul/internal/logging"
)

func TestEnabledFollowsConfig(t *testing.T) {
	log := logging.NewLogger(logging.ModeCLI, nil)

	n := NewNotifier(config.NotificationConfig{Enabled: true}, log)
	if !n.IsEnabled() {
		t.Error("expected notifier enabled when config enables it")
	}

	n = NewNotifier(config.NotificationConfig{Enabled: false}, log)
	if n.IsEnabled() {
		t.Error("expected notifier disabled when config disables it")
	}

	n.SetEnabled(true)
	if !n.IsEnabled() {
		t.Error("SetEnabled(true) should enable the notifier")
	}
}

func TestDisabledNotifierIsSilent(t *testing.T) {
	// When disabled, notification methods should be no-ops
	log := logging.NewLogger(logging.ModeCLI, nil)
	n := NewNotifier(config.NotificationConfig{Enabled: false}, log)

	n.TransferComplete("Import complete: 10 documents", "/tmp/a.mongohaul.tar.gz")
	n.TransferFailed("connection reset")
	n.Alert("test alert")

	// If we get here without panicking, the test passes
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10c", 10, "exactly10c"},
		{"this is a long string", 10, "this is..."},
		{"", 10, ""},
		{"abc", 3, "abc"},
		{"abcd", 3, "..."},
	}

	for _, tt := range tests {
		result := truncate(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
		}
	}
}

func TestShortenPathKeepsShortPaths(t *testing.T) {
	p := "/tmp/snap.mongohaul.tar.gz"
	if got := shortenPath(p); got != p {
		t.Errorf("shortenPath(%q) = %q, want unchanged", p, got)
	}
}

func TestShortenPathAbbreviatesLongPaths(t *testing.T) {
	p := "/very/long/path/that/keeps/going/and/going/through/many/directories/snapshot.mongohaul.tar.gz"
	got := shortenPath(p)
	if len(got) > 60 {
		t.Errorf("shortenPath returned %d chars, want <= 60: %q", len(got), got)
	}
}
