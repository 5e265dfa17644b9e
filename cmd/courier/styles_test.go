package main

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

// setMockTTY sets the TTY override for tests and returns a cleanup function.
func setMockTTY(value bool) func() {
	testIsTTYMutex.Lock()
	testIsTTYOverride = &value
	testIsTTYMutex.Unlock()
	return func() {
		testIsTTYMutex.Lock()
		testIsTTYOverride = nil
		testIsTTYMutex.Unlock()
	}
}

func TestRenderTable_TTY(t *testing.T) {
	defer setMockTTY(true)()

	result := renderTable([]string{"KEY", "VALUE"}, [][]string{{"ttsVoice", "nova"}})
	for _, want := range []string{"KEY", "VALUE", "ttsVoice", "nova"} {
		if !strings.Contains(result, want) {
			t.Errorf("result should contain %q", want)
		}
	}
	if !strings.ContainsAny(result, "─│╭╮╰╯") {
		t.Error("TTY output should contain border characters")
	}
}

func TestRenderTable_Plain(t *testing.T) {
	defer setMockTTY(false)()

	result := renderTable([]string{"KEY", "VALUE"}, [][]string{
		{"voiceLanguage", "en"},
		{"ttsVoice", "nova"},
	})

	if strings.ContainsAny(result, "─│╭╮╰╯\x1b") {
		t.Errorf("plain output should have no borders or escapes:\n%s", result)
	}
	lines := strings.Split(result, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), result)
	}
	if lines[0] != "KEY            VALUE" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[2] != "ttsVoice       nova" {
		t.Errorf("row = %q", lines[2])
	}
}

func TestRenderPanel_Plain(t *testing.T) {
	defer setMockTTY(false)()

	result := renderPanel("Status", [][2]string{{"Profile", "default"}, {"Pending", "2"}})
	want := "Status\n------\nProfile: default\nPending: 2"
	if result != want {
		t.Errorf("renderPanel =\n%s\nwant\n%s", result, want)
	}
}

func TestRenderPanel_TTY(t *testing.T) {
	defer setMockTTY(true)()

	result := renderPanel("Status", [][2]string{{"Profile", "default"}})
	if !strings.ContainsAny(result, "╭╰") {
		t.Error("TTY panel should be boxed")
	}
	if !strings.Contains(result, "default") {
		t.Error("panel should contain the value")
	}
}

func TestPrintHelpers_PlainHasIcons(t *testing.T) {
	defer setMockTTY(false)()

	tests := []struct {
		name  string
		print func(*bytes.Buffer)
		icon  string
	}{
		{"success", func(b *bytes.Buffer) { printSuccess(b, "done %d", 1) }, iconSuccess},
		{"error", func(b *bytes.Buffer) { printError(b, "failed") }, iconError},
		{"warning", func(b *bytes.Buffer) { printWarning(b, "careful") }, iconWarning},
		{"info", func(b *bytes.Buffer) { printInfo(b, "note") }, iconInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.print(&buf)
			if !strings.HasPrefix(buf.String(), tt.icon) {
				t.Errorf("output %q should start with %q", buf.String(), tt.icon)
			}
		})
	}

	var buf bytes.Buffer
	printMuted(&buf, "quiet")
	if buf.String() != "quiet\n" {
		t.Errorf("printMuted = %q", buf.String())
	}
}

func TestFormatAgo(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m"},
		{3 * time.Hour, "3h"},
		{50 * time.Hour, "2d"},
	}
	for _, tt := range tests {
		if got := formatAgo(tt.d); got != tt.want {
			t.Errorf("formatAgo(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
	if got := formatTime(time.Time{}); got != "never" {
		t.Errorf("formatTime(zero) = %q", got)
	}
}

func TestSpinner_NonTTYPrintsMessageOnce(t *testing.T) {
	defer setMockTTY(false)()

	var buf bytes.Buffer
	called := false
	err := runWithSpinner(&buf, "working", func() error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("runWithSpinner err=%v called=%v", err, called)
	}
	if buf.String() != "working...\n" {
		t.Errorf("non-TTY spinner wrote %q", buf.String())
	}
}
