package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestAppErrorMessage(t *testing.T) {
	err := Wrap(stderrors.New("device busy"), CodeCaptureUnavailable, "open stream").
		WithMetadata("source", "video")

	want := "[CAPTURE_UNAVAILABLE] open stream map[source:video] caused by: device busy"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want codes.Code
	}{
		{CodeCaptureUnavailable, codes.Unavailable},
		{CodeCaptureEnded, codes.Aborted},
		{CodeRecognizerNotReady, codes.FailedPrecondition},
		{CodeRecognitionFailed, codes.Internal},
		{CodeConfigInvalid, codes.InvalidArgument},
		{ErrorCode(999), codes.Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			if got := New(tt.code, "x").GRPCCode(); got != tt.want {
				t.Errorf("GRPCCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusRoundTrip(t *testing.T) {
	orig := Newf(CodeRecognizerInitFailed, "worker %d", 0).WithMetadata("lang", "eng")

	got := FromGRPCError(orig.GRPCStatus().Err())
	if got.Code != CodeRecognizerInitFailed {
		t.Errorf("Code = %v, want %v", got.Code, CodeRecognizerInitFailed)
	}
	if got.Metadata["lang"] != "eng" {
		t.Errorf("Metadata[lang] = %q, want %q", got.Metadata["lang"], "eng")
	}
}

func TestFromGRPCErrorFallback(t *testing.T) {
	got := FromGRPCError(status.Error(codes.DeadlineExceeded, "slow"))
	if got.Code != CodeTimeout {
		t.Errorf("Code = %v, want %v", got.Code, CodeTimeout)
	}

	plain := FromGRPCError(stderrors.New("boom"))
	if plain.Code != CodeUnknown {
		t.Errorf("Code = %v, want %v", plain.Code, CodeUnknown)
	}
}

func TestIsCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("start: %w", New(CodeCaptureUnavailable, "no display"))

	if !IsCode(err, CodeCaptureUnavailable) {
		t.Error("IsCode should see through fmt wrapping")
	}
	if IsCode(err, CodeInternal) {
		t.Error("IsCode matched wrong code")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"capture unavailable", New(CodeCaptureUnavailable, ""), true},
		{"init failed", New(CodeRecognizerInitFailed, ""), true},
		{"config invalid", New(CodeConfigInvalid, ""), false},
		{"plain error", stderrors.New("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseCode(t *testing.T) {
	if got := ParseCode("SUBMIT_FAILED"); got != CodeSubmitFailed {
		t.Errorf("ParseCode() = %v, want %v", got, CodeSubmitFailed)
	}
	if got := ParseCode("nope"); got != CodeUnknown {
		t.Errorf("ParseCode() = %v, want %v", got, CodeUnknown)
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("x: %w", New(CodeCancelled, "stop"))); got != CodeCancelled {
		t.Errorf("CodeOf() = %v, want %v", got, CodeCancelled)
	}
	if got := CodeOf(stderrors.New("x")); got != CodeUnknown {
		t.Errorf("CodeOf(plain) = %v, want %v", got, CodeUnknown)
	}
}
