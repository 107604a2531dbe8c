package errors

import (
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name    string
		appErr  *AppError
		wantStr string
	}{
		{
			name: "error with underlying error",
			appErr: &AppError{
				Code:    "TEST_ERROR",
				Message: "Test message",
				Err:     fmt.Errorf("underlying"),
			},
			wantStr: "TEST_ERROR: Test message - underlying",
		},
		{
			name: "error without underlying error",
			appErr: &AppError{
				Code:    "TEST_ERROR",
				Message: "Test message",
			},
			wantStr: "TEST_ERROR: Test message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.wantStr {
				t.Errorf("Error() = %v, want %v", got, tt.wantStr)
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{
			name: "matching code",
			err:  NewAlreadyGeneratedError("routine already generated for date"),
			code: CodeAlreadyGenerated,
			want: true,
		},
		{
			name: "non-matching code",
			err:  NewTemplateNotFoundError("template missing", nil),
			code: CodeAlreadyGenerated,
			want: false,
		},
		{
			name: "wrapped AppError",
			err:  fmt.Errorf("generate: %w", NewTemplateEmptyError("no active tasks")),
			code: CodeTemplateEmpty,
			want: true,
		},
		{
			name: "plain error",
			err:  fmt.Errorf("boom"),
			code: CodeInternal,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			code: CodeInternal,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCode(tt.err, tt.code); got != tt.want {
				t.Errorf("HasCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewDeliveryError(t *testing.T) {
	underlying := fmt.Errorf("connection refused")
	err := NewDeliveryError("channel publish failed", underlying)

	if err.Code != CodeDelivery {
		t.Errorf("Code = %v, want %v", err.Code, CodeDelivery)
	}
	if err.Unwrap() != underlying {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), underlying)
	}
}

func TestNewValidationError(t *testing.T) {
	message := "target_date is required"
	err := NewValidationError(message, nil)

	if err.Code != CodeValidation {
		t.Errorf("Code = %v, want %v", err.Code, CodeValidation)
	}
	if err.Message != message {
		t.Errorf("Message = %v, want %v", err.Message, message)
	}
}
