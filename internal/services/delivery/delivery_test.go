package delivery

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"remindbot/internal/services/reminder"
)

func TestConsoleWritesMessage(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	c := NewConsole(&buf)
	if err := c.Deliver(context.Background(), "hydrate"); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if !strings.Contains(buf.String(), "hydrate") {
		t.Fatalf("output missing message: %q", buf.String())
	}
}

func TestMultiSucceedsWhenAnySinkSucceeds(t *testing.T) {
	t.Parallel()
	failing := reminder.DelivererFunc(func(context.Context, string) error {
		return errors.New("down")
	})
	var got string
	working := reminder.DelivererFunc(func(_ context.Context, msg string) error {
		got = msg
		return nil
	})

	m := NewMulti(failing, working)
	if err := m.Deliver(context.Background(), "hi"); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got != "hi" {
		t.Fatalf("working sink got %q", got)
	}
}

func TestMultiFailsWhenAllSinksFail(t *testing.T) {
	t.Parallel()
	boom := reminder.DelivererFunc(func(context.Context, string) error {
		return errors.New("boom")
	})
	m := NewMulti(boom, boom)
	if err := m.Deliver(context.Background(), "hi"); err == nil {
		t.Fatal("expected error when every sink fails")
	}
}

func TestMultiNoSinks(t *testing.T) {
	t.Parallel()
	if err := NewMulti().Deliver(context.Background(), "hi"); err == nil {
		t.Fatal("expected error with no sinks")
	}
}
