// internal/platform/errors/errors_test.go
package errors

import (
	stderrors "errors"
	"testing"
)

func TestWrap(t *testing.T) {
	cause := stderrors.New("connection refused")

	err := Wrap(cause, "open store")
	if err.Error() != "open store: connection refused" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Error("wrapped error must preserve its cause")
	}
	if Wrap(nil, "noop") != nil {
		t.Error("Wrap(nil) must return nil")
	}
}

func TestWrapf(t *testing.T) {
	cause := stderrors.New("locked")

	err := Wrapf(cause, "upsert asset %s/%s", "resolved", "api.example.com")
	if err.Error() != "upsert asset resolved/api.example.com: locked" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Error("wrapped error must preserve its cause")
	}
	if Wrapf(nil, "noop %d", 1) != nil {
		t.Error("Wrapf(nil) must return nil")
	}
}
