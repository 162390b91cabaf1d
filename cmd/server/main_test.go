package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"-port", "70000"}, "invalid port"},
		{[]string{"-databases", "-3"}, "databases must be positive"},
		{[]string{"-log-level", "bogus"}, "invalid log level"},
	}

	for _, tt := range tests {
		var stderr bytes.Buffer
		if code := run(context.Background(), tt.args, &stderr); code != 2 {
			t.Errorf("%v: expected exit 2, got %d", tt.args, code)
		}
		if !strings.Contains(stderr.String(), tt.want) {
			t.Errorf("%v: expected %q in output, got %q", tt.args, tt.want, stderr.String())
		}
	}
}

func TestRunBadFlag(t *testing.T) {
	var stderr bytes.Buffer
	if code := run(context.Background(), []string{"-nope"}, &stderr); code != 2 {
		t.Errorf("Expected exit 2, got %d", code)
	}
}

func TestRunStopsWhenCanceledBeforeReady(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan int, 1)
	go func() {
		var stderr bytes.Buffer
		done <- run(ctx, []string{"-host", "127.0.0.1", "-port", "0", "-log-level", "error"}, &stderr)
	}()

	select {
	case code := <-done:
		if code != 0 {
			t.Errorf("Expected exit 0, got %d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server kept running after the context was canceled")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan int, 1)
	go func() {
		var stderr bytes.Buffer
		done <- run(ctx, []string{"-host", "127.0.0.1", "-port", "0", "-log-level", "error"}, &stderr)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case code := <-done:
		if code != 0 {
			t.Errorf("Expected exit 0, got %d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
