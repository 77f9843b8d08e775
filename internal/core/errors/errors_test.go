package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestWrapPreservesCodeAndCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(cause, CodeManifestError, "load manifest")

	if !IsCode(err, CodeManifestError) {
		t.Fatalf("expected MANIFEST_ERROR, got %v", err)
	}
	if !stderrors.Is(err, cause) {
		t.Fatal("wrapped cause lost")
	}
	if !strings.Contains(err.Error(), "MANIFEST_ERROR") {
		t.Errorf("code missing from message: %s", err.Error())
	}
}

func TestAddContextOnForeignError(t *testing.T) {
	err := AddContext(stderrors.New("plain"), CtxPath, "/tmp/x")
	var de *DomainError
	if !stderrors.As(err, &de) {
		t.Fatal("expected DomainError")
	}
	if de.Context[CtxPath] != "/tmp/x" {
		t.Errorf("context not attached: %v", de.Context)
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		code  ErrorCode
		fatal bool
	}{
		{CodeConfigError, true},
		{CodeManifestError, true},
		{CodeParseError, false},
		{CodeResolveError, false},
		{CodeNotFound, false},
	}
	for _, tt := range tests {
		if got := IsFatal(New(tt.code, "x")); got != tt.fatal {
			t.Errorf("IsFatal(%s) = %v, want %v", tt.code, got, tt.fatal)
		}
	}
}
