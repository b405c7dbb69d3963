package uuidv7_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/agnt-gg/slop-sub000/internal/uuidv7"
)

func TestNewReturnsVersion7(t *testing.T) {
	t.Parallel()

	id := uuidv7.New()
	if id.Version() != 7 {
		t.Fatalf("expected version 7, got %d", id.Version())
	}
	if id == uuidv7.New() {
		t.Fatal("expected unique ids across calls")
	}
}

func TestNewStringParses(t *testing.T) {
	t.Parallel()

	parsed, err := uuid.Parse(uuidv7.NewString())
	if err != nil {
		t.Fatalf("uuid.Parse: %v", err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected version 7, got %d", parsed.Version())
	}
}
