package config

import (
	"testing"
	"time"
)

func TestGetEnvIntFallback(t *testing.T) {
	t.Setenv("TEST_INT_OK", "42")
	t.Setenv("TEST_INT_BAD", "not-a-number")

	if v := getEnvInt("TEST_INT_OK", 7); v != 42 {
		t.Errorf("got %d, want 42", v)
	}
	if v := getEnvInt("TEST_INT_BAD", 7); v != 7 {
		t.Errorf("bad value should fall back, got %d", v)
	}
	if v := getEnvInt("TEST_INT_MISSING", 7); v != 7 {
		t.Errorf("missing value should fall back, got %d", v)
	}
}

func TestParseNameList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"alice", []string{"alice"}},
		{"alice,bob", []string{"alice", "bob"}},
		{" alice , bob ,", []string{"alice", "bob"}},
		{",,", nil},
	}

	for _, tt := range tests {
		got := parseNameList(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("parseNameList(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parseNameList(%q) = %v, want %v", tt.in, got, tt.want)
				break
			}
		}
	}
}

func TestIsAdmin(t *testing.T) {
	cfg := &Config{AdminUsernames: []string{"alice", "bob"}}

	if !cfg.IsAdmin("alice") {
		t.Error("alice should be admin")
	}
	if cfg.IsAdmin("mallory") {
		t.Error("mallory should not be admin")
	}
	if cfg.IsAdmin("") {
		t.Error("empty username should not be admin")
	}
}

func TestLoadDurations(t *testing.T) {
	t.Setenv("WITHDRAWAL_INTERVAL_SECONDS", "3600")
	t.Setenv("REAPER_INTERVAL_SECONDS", "60")

	cfg := Load()

	if cfg.WithdrawalInterval != time.Hour {
		t.Errorf("WithdrawalInterval = %v, want 1h", cfg.WithdrawalInterval)
	}
	if cfg.ReaperInterval != time.Minute {
		t.Errorf("ReaperInterval = %v, want 1m", cfg.ReaperInterval)
	}
}
