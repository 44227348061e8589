// GO TESTING BASICS:
// 1. Test files MUST end in _test.go — Go's tooling auto-discovers them
// 2. Test functions MUST start with "Test" and take *testing.T as the only param
// 3. Same package as the code being tested (so we can access unexported stuff)
// 4. Run with: go test ./internal/apperror/ -v  (-v = verbose, shows each test name)
package apperror

import (
	"errors"
	"io"
	"testing"
)

// TABLE-DRIVEN TESTS:
// Instead of writing a separate test function per constructor, we define a slice
// of cases and loop over them. Every case gets a name that shows up in test output.

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("user", "did:privy:abc"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "NotFoundMessage wraps ErrNotFound",
			err:       NotFoundMessage("user has no platform tokens"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("text", "text is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "AuthenticationFailed wraps ErrAuthentication",
			err:       AuthenticationFailed("invalid token", nil),
			target:    ErrAuthentication,
			wantMatch: true,
		},
		{
			name:      "Upstream wraps ErrUpstream",
			err:       Upstream(403, []byte(`{"title":"Forbidden"}`)),
			target:    ErrUpstream,
			wantMatch: true,
		},
		{
			name:      "Transport wraps ErrTransport",
			err:       Transport("posting tweet", io.ErrUnexpectedEOF),
			target:    ErrTransport,
			wantMatch: true,
		},
		{
			name:      "Transport also matches its cause",
			err:       Transport("posting tweet", io.ErrUnexpectedEOF),
			target:    io.ErrUnexpectedEOF,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("user", "u1"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "AuthenticationFailed does NOT match ErrNotFound",
			err:       AuthenticationFailed("expired", io.EOF),
			target:    ErrNotFound,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("user", "u1"),
			wantMessage: "user not found with id u1",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("subjectId", "subjectId is required"),
			wantMessage: "subjectId is required",
		},
		{
			name:        "Upstream message includes status",
			err:         Upstream(429, nil),
			wantMessage: "upstream returned status 429",
		},
		{
			name:        "Transport message includes operation and cause",
			err:         Transport("posting tweet", errors.New("connection refused")),
			wantMessage: "posting tweet: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestErrorsAsThroughWrapping(t *testing.T) {
	// Services wrap AppErrors with fmt.Errorf("...: %w", err). errors.As must still
	// find the AppError so the handler can read Status and Body.
	wrapped := errors.Join(errors.New("context"), Upstream(401, []byte(`{"detail":"Unauthorized"}`)))

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As() did not find *AppError")
	}
	if appErr.Status != 401 {
		t.Errorf("Status = %d, want 401", appErr.Status)
	}
	if string(appErr.Body) != `{"detail":"Unauthorized"}` {
		t.Errorf("Body = %s", appErr.Body)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("text", "text is required")

	if err.Field != "text" {
		t.Errorf("Field = %q, want %q", err.Field, "text")
	}
}
