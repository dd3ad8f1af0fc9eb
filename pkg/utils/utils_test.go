package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// --- CategorizeError Tests ---

func TestCategorizeError_NilError(t *testing.T) {
	result := CategorizeError(nil)
	if result != "None" {
		t.Errorf("CategorizeError(nil) = %q, want %q", result, "None")
	}
}

func TestCategorizeError_SentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"Extraction", ErrExtraction, "Content_ExtractionFailed"},
		{"MalformedInput", ErrMalformedInput, "Content_MalformedLabelList"},
		{"Save", ErrSave, "Save_Rejected"},
		{"LogFailure", ErrLogFailure, "FailureLog_Write"},
		{"Transport", ErrTransport, "Transport_Other"},
		{"RequestCreation", ErrRequestCreation, "Internal_RequestCreation"},
		{"ResponseBodyRead", ErrResponseBodyRead, "Network_BodyRead"},
		{"ConfigValidation", ErrConfigValidation, "Config_Validation"},
		{"ServerHTTPError", ErrServerHTTPError, "HTTP_5xx"},
		{"OtherHTTPError", ErrOtherHTTPError, "HTTP_OtherStatus"},
		{"Database", ErrDatabase, "Database_Other"},
		{"Filesystem", ErrFilesystem, "Filesystem_Other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_WrappedErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "WrappedExtraction",
			err:      fmt.Errorf("name node missing: %w", ErrExtraction),
			expected: "Content_ExtractionFailed",
		},
		{
			name:     "MalformedBeatsExtraction",
			err:      fmt.Errorf("%w: site_chars: %w", ErrExtraction, ErrMalformedInput),
			expected: "Content_MalformedLabelList",
		},
		{
			name:     "SaveOverTransport",
			err:      fmt.Errorf("%w: %w: connection refused", ErrSave, ErrTransport),
			expected: "Save_Transport",
		},
		{
			name:     "SaveOverDatabase",
			err:      fmt.Errorf("%w: %w: insert failed", ErrSave, ErrDatabase),
			expected: "Save_Database",
		},
		{
			name:     "RetryFailedServer",
			err:      fmt.Errorf("%w: %w", ErrRetryFailed, fmt.Errorf("%w: status 503", ErrServerHTTPError)),
			expected: "RetryFailed_HTTPServer",
		},
		{
			name:     "RetryFailedRefused",
			err:      fmt.Errorf("%w: %w", ErrRetryFailed, errors.New("dial tcp: connection refused")),
			expected: "RetryFailed_ConnectionRefused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_ClientHTTPCodes(t *testing.T) {
	tests := []struct {
		status   string
		expected string
	}{
		{"status 404 Not Found", "HTTP_404"},
		{"status 403 Forbidden", "HTTP_403"},
		{"status 429 Too Many Requests", "HTTP_429"},
		{"status 410 Gone", "HTTP_4xx"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			err := fmt.Errorf("%w: %s", ErrClientHTTPError, tt.status)
			if got := CategorizeError(err); got != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", err, got, tt.expected)
			}
		})
	}
}

func TestCategorizeError_ContextErrors(t *testing.T) {
	if got := CategorizeError(context.Canceled); got != "System_ContextCanceled" {
		t.Errorf("CategorizeError(Canceled) = %q", got)
	}
	if got := CategorizeError(fmt.Errorf("wait: %w", context.DeadlineExceeded)); got != "System_ContextDeadlineExceeded" {
		t.Errorf("CategorizeError(DeadlineExceeded) = %q", got)
	}
}

func TestCategorizeError_Unknown(t *testing.T) {
	err := errors.New("something odd")
	if result := CategorizeError(err); result != "Unknown" {
		t.Errorf("CategorizeError(%v) = %q, want %q", err, result, "Unknown")
	}
}

// --- SanitizeFilename Tests ---

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Simple", "scene0391.html", "scene0391.html"},
		{"WithSlash", "path/to/file", "path_to_file"},
		{"WithColon", "file:name", "file_name"},
		{"ConsecutiveUnderscores", "a___b", "a_b"},
		{"LeadingTrailingSpaces", "  file  ", "file"},
		{"Empty", "", "untitled"},
		{"OnlyInvalidChars", "<>:", "untitled"},
		{"ControlChars", "file\x01\x02name", "file_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitizeFilename_LongNames(t *testing.T) {
	result := SanitizeFilename(strings.Repeat("a", 250))
	if len(result) > maxFilenameLength {
		t.Errorf("SanitizeFilename(long) length = %d, want <= %d", len(result), maxFilenameLength)
	}
}

func TestLastPathSegment(t *testing.T) {
	tests := []struct {
		name     string
		link     string
		expected string
		wantErr  bool
	}{
		{"DetailPage", "http://www.gardening.cornell.edu/homegardening/scene0391.html", "scene0391.html", false},
		{"TrailingSlash", "http://example.com/a/b/", "b", false},
		{"QueryIgnored", "http://example.com/a/page.html?x=1", "page.html", false},
		{"NoPath", "http://example.com", "", true},
		{"Unparseable", "http://[::1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LastPathSegment(tt.link)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("LastPathSegment(%q) expected error, got %q", tt.link, got)
				}
				if !errors.Is(err, ErrParsing) {
					t.Errorf("LastPathSegment(%q) error should wrap ErrParsing: %v", tt.link, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("LastPathSegment(%q) unexpected error: %v", tt.link, err)
			}
			if got != tt.expected {
				t.Errorf("LastPathSegment(%q) = %q, want %q", tt.link, got, tt.expected)
			}
		})
	}
}

// --- Hash Tests ---

func TestCalculateStringSHA256(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"HelloWorld", "872e4e50ce9990d8b041330c47c9ddd11bec6b503ae9386a99da8584e9bb12c4"},
	}
	for _, tt := range tests {
		if got := CalculateStringSHA256(tt.input); got != tt.expected {
			t.Errorf("CalculateStringSHA256(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

// --- WrapErrorf Tests ---

func TestWrapErrorf_NilError(t *testing.T) {
	if result := WrapErrorf(nil, "some context"); result != nil {
		t.Errorf("WrapErrorf(nil, ...) = %v, want nil", result)
	}
}

func TestWrapErrorf_WrapsError(t *testing.T) {
	original := errors.New("original error")
	wrapped := WrapErrorf(original, "context %s", "value")

	if !errors.Is(wrapped, original) {
		t.Error("WrapErrorf() result should wrap original error")
	}
	expectedMsg := "context value: original error"
	if wrapped.Error() != expectedMsg {
		t.Errorf("WrapErrorf() message = %q, want %q", wrapped.Error(), expectedMsg)
	}
}
