package daemon

import (
	"testing"
	"time"
)

func TestLockoutTriggersAtThreshold(t *testing.T) {
	tr := newLockoutTracker()
	for i := 0; i < lockoutThreshold-1; i++ {
		tr.RecordFailure("alice")
	}
	if locked, _ := tr.Locked("alice"); locked {
		t.Fatal("should not be locked before threshold")
	}

	tr.RecordFailure("alice")
	locked, remaining := tr.Locked("alice")
	if !locked {
		t.Fatal("expected lockout at threshold")
	}
	if remaining <= 0 || remaining > lockoutDuration {
		t.Fatalf("unexpected remaining duration: %v", remaining)
	}
}

func TestLockoutSuccessClearsHistory(t *testing.T) {
	tr := newLockoutTracker()
	for i := 0; i < lockoutThreshold; i++ {
		tr.RecordFailure("bob")
	}
	if locked, _ := tr.Locked("bob"); !locked {
		t.Fatal("expected lockout before clearing")
	}

	tr.RecordSuccess("bob")
	if locked, _ := tr.Locked("bob"); locked {
		t.Fatal("success should clear lockout")
	}
}

func TestLockoutWindowPrunesOldFailures(t *testing.T) {
	tr := newLockoutTracker()
	h := &attemptHistory{}
	tr.history["carol"] = h

	old := time.Now().Add(-2 * lockoutWindow)
	for i := 0; i < lockoutThreshold-1; i++ {
		h.failures = append(h.failures, old)
	}

	tr.RecordFailure("carol")
	if locked, _ := tr.Locked("carol"); locked {
		t.Fatal("stale failures outside the window should not count toward lockout")
	}
}

func TestUnknownUserNotLocked(t *testing.T) {
	tr := newLockoutTracker()
	if locked, _ := tr.Locked("nobody"); locked {
		t.Fatal("unknown user should never be locked")
	}
}
