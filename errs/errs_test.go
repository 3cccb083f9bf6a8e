package errs

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := New("feed/connect", CodeNetwork,
		WithVenue("binance"),
		WithMessage("websocket dial failed"),
		WithCanonicalCode(CanonicalVenueDisconnected),
		WithCause(cause))

	msg := err.Error()
	for _, want := range []string{
		"op=feed/connect",
		"code=network",
		"canonical=venue_disconnected",
		"venue=binance",
		`message="websocket dial failed"`,
		"connection refused",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error message missing %q: %s", want, msg)
		}
	}

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to reach the cause")
	}
}

func TestCanonicalOf(t *testing.T) {
	err := New("risk/validate", CodeInvalid, WithCanonicalCode(CanonicalInsufficientBalance))
	if got := CanonicalOf(err); got != CanonicalInsufficientBalance {
		t.Fatalf("canonical = %s, want %s", got, CanonicalInsufficientBalance)
	}
	if got := CanonicalOf(errors.New("plain")); got != CanonicalUnknown {
		t.Fatalf("canonical of plain error = %s, want unknown", got)
	}
}

func TestEmptyCanonicalFallsBackToUnknown(t *testing.T) {
	err := New("x", CodeInvalid, WithCanonicalCode(""))
	if err.Canonical != CanonicalUnknown {
		t.Fatalf("canonical = %s, want unknown", err.Canonical)
	}
}
