package herr

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew_carriesKindAndOp(t *testing.T) {
	err := New(UserInput, "thing.Do")
	if err.Kind != UserInput || err.Op != "thing.Do" {
		t.Fatalf("unexpected error: %+v", err)
	}
	if err.Error() != "thing.Do: user_input" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestWrap_nilErrReturnsNilPointer(t *testing.T) {
	if Wrap(Storage, "op", nil) != nil {
		t.Fatal("Wrap(kind, op, nil) must return a nil *Error")
	}
}

func TestWrap_carriesUnderlyingCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(Storage, "store.Save", cause)
	if err.Kind != Storage {
		t.Fatalf("want Storage, got %v", err.Kind)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected Unwrap to expose the underlying cause via errors.Is")
	}
}

func TestKindOf_unwrapsThroughFmtErrorf(t *testing.T) {
	tagged := New(Protocol, "mcp.Call")
	wrapped := fmt.Errorf("while dispatching: %w", tagged)
	if KindOf(wrapped) != Protocol {
		t.Fatalf("want Protocol, got %v", KindOf(wrapped))
	}
}

func TestKindOf_untaggedErrorIsFatal(t *testing.T) {
	if KindOf(errors.New("plain")) != Fatal {
		t.Fatal("an untagged error crossing a boundary should classify as Fatal")
	}
}

func TestKindOf_nilErrorIsFatal(t *testing.T) {
	if KindOf(nil) != Fatal {
		t.Fatal("KindOf has no UserInput-free success case; nil still classifies as Fatal")
	}
}
