package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "invalid date maps correctly",
			err:         errors.New("Row 3: Invalid date format for deploy_date"),
			wantCode:    "VAL001",
			wantMessage: "Invalid date format detected",
		},
		{
			name:        "required field maps correctly",
			err:         errors.New("Row 1: AIR ID is required"),
			wantCode:    "VAL003",
			wantMessage: "Required field is empty",
		},
		{
			name:        "duplicate keys sentinel maps correctly",
			err:         fmt.Errorf("%w: AIR-1", ErrDuplicateKeys),
			wantCode:    "VAL005",
			wantMessage: "The file repeats an AIR ID",
		},
		{
			name:        "malformed record body",
			err:         fmt.Errorf("%w: json: unknown field \"bogus\"", ErrInvalidRecord),
			wantCode:    "VAL007",
			wantMessage: "The record could not be read",
		},
		{
			name:        "record field problem keeps its own code",
			err:         fmt.Errorf("%w: Name is required", ErrInvalidRecord),
			wantCode:    "VAL003",
			wantMessage: "Required field is empty",
		},
		{
			name:        "unknown sync mode",
			err:         fmt.Errorf("%w: %q", ErrInvalidMode, "merge"),
			wantCode:    "VAL008",
			wantMessage: "Unknown sync mode",
		},
		{
			name:        "session not found wins over generic not found",
			err:         ErrSessionNotFound,
			wantCode:    "SYNC001",
			wantMessage: "Preview session not found",
		},
		{
			name:        "run limiter sentinel maps correctly",
			err:         ErrTooManyRuns,
			wantCode:    "SYNC004",
			wantMessage: "Another sync is running",
		},
		{
			name:        "connection refused maps correctly",
			err:         errors.New("Get \"http://localhost:8000/api/automations/\": dial tcp: connection refused"),
			wantCode:    "BE001",
			wantMessage: "Unable to connect to the automation backend",
		},
		{
			name:        "client timeout maps correctly",
			err:         errors.New("Client.Timeout exceeded while awaiting headers"),
			wantCode:    "BE002",
			wantMessage: "The automation backend did not respond in time",
		},
		{
			name:        "file too large maps correctly",
			err:         errors.New("file too large: 30MB exceeds limit"),
			wantCode:    "FILE001",
			wantMessage: "File exceeds maximum size limit",
		},
		{
			name:        "rate limit maps correctly",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("UNSUPPORTED FILE FORMAT: .txt"),
			wantCode:    "FILE006",
			wantMessage: "Unsupported file format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(errors.New("no file provided"))

	expected := "No file was selected (Code: FILE005). Please select a CSV, XLSX or JSON file to upload"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", ErrConfirmationRequired, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		userErr := NewUserError(ErrRunNotFound)

		if userErr.Error() != "Sync run not found" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrRunNotFound) {
			t.Error("Unwrap() should return original error")
		}
	})
}
