package main

import (
	"bytes"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestServeRejectsConnectPattern(t *testing.T) {
	_, err := run(t, "serve", "--pattern", "push", "--log-level", "error")
	if err == nil || !strings.Contains(err.Error(), "cannot serve") {
		t.Fatalf("expected role error, got %v", err)
	}
}

func TestSendRejectsBindPattern(t *testing.T) {
	_, err := run(t, "send", "--pattern", "pull", "--log-level", "error", "x")
	if err == nil || !strings.Contains(err.Error(), "cannot send") {
		t.Fatalf("expected role error, got %v", err)
	}
}

func TestSendRequiresMessage(t *testing.T) {
	if _, err := run(t, "send", "--log-level", "error"); err == nil {
		t.Fatal("expected missing argument error")
	}
}

func TestUnknownPattern(t *testing.T) {
	if _, err := run(t, "serve", "--pattern", "pubsub", "--log-level", "error"); err == nil {
		t.Fatal("expected unknown pattern error")
	}
}
