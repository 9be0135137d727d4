package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	if got := KindOf(NotFound("ride not found")); got != KindNotFound {
		t.Errorf("KindOf = %s, want NOT_FOUND", got)
	}
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Errorf("unclassified error KindOf = %s, want INTERNAL", got)
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := Conflict("offer taken")
	wrapped := fmt.Errorf("accept offer: %w", err)

	if got := KindOf(wrapped); got != KindConflict {
		t.Errorf("KindOf through %%w = %s, want CONFLICT", got)
	}
	if !IsKind(wrapped, KindConflict) {
		t.Error("IsKind through %w = false")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindInternal, "query rides", cause)

	if !errors.Is(err, cause) {
		t.Error("cause lost from the chain")
	}
	if got := err.Error(); got != "query rides: connection reset" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIsKindNilError(t *testing.T) {
	if IsKind(nil, KindInternal) {
		t.Error("IsKind(nil) = true")
	}
}
