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
			name: "nil error returns empty",
			err:  nil,
		},
		{
			name:        "signup validation",
			err:         Validation("All fields are required."),
			wantCode:    "AUTH001",
			wantMessage: "All fields are required.",
		},
		{
			name:        "duplicate email",
			err:         Conflict("Email already registered. Please log in."),
			wantCode:    "AUTH002",
			wantMessage: "Email already registered. Please log in.",
		},
		{
			name:        "missing token",
			err:         Unauthenticated("Not authenticated. Token missing or invalid."),
			wantCode:    "AUTH003",
			wantMessage: "Not authenticated. Token missing or invalid.",
		},
		{
			name:        "bad credentials",
			err:         Unauthorized("Invalid credentials."),
			wantCode:    "AUTH004",
			wantMessage: "Invalid credentials.",
		},
		{
			name:        "wrong role",
			err:         fmt.Errorf("guard: %w", Forbidden("Admin access only.")),
			wantCode:    "AUTH005",
			wantMessage: "Admin access only.",
		},
		{
			name:        "upload rejection",
			err:         UploadRejected("Invalid Excel file format"),
			wantCode:    "UPL001",
			wantMessage: "Invalid Excel file format",
		},
		{
			name:        "parse timeout",
			err:         Timeout("Invalid Excel file format", errors.New("deadline")),
			wantCode:    "UPL002",
			wantMessage: "Invalid Excel file format",
		},
		{
			name:        "busy",
			err:         Busy("Server is busy. Please try again.", ErrBusy),
			wantCode:    "SYS001",
			wantMessage: "Server is busy. Please try again.",
		},
		{
			name:        "database down",
			err:         Infrastructure("Server error during signup.", errors.New("dial tcp: connection refused")),
			wantCode:    "DB001",
			wantMessage: "Server error during signup.",
		},
		{
			name:        "redis failure",
			err:         Infrastructure("Server error during login.", errors.New("redis: i/o error")),
			wantCode:    "RDS001",
			wantMessage: "Server error during login.",
		},
		{
			name:        "unclassified",
			err:         errors.New("something odd"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestUploadRejected_IsValidation(t *testing.T) {
	err := UploadRejected("Only .xls and .xlsx files are allowed")
	if KindOf(err) != KindValidation {
		t.Errorf("KindOf = %v, want validation", KindOf(err))
	}
	if !errors.Is(err, ErrUpload) {
		t.Error("UploadRejected should wrap ErrUpload")
	}
}
