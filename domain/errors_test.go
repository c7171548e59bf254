package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/satriahrh/scribe/domain/entities"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"deadline exceeded", fmt.Errorf("post: %w", context.DeadlineExceeded), ErrProviderTimeout},
		{"net timeout", timeoutError{}, ErrProviderTimeout},
		{"connection refused", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, ErrProviderUnavailable},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "api.example.com"}, ErrProviderUnavailable},
		{"anything else", errors.New("boom"), ErrProviderFailure},
		{"already classified", fmt.Errorf("x: %w", ErrMissingCredentials), ErrMissingCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyTransportError(tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	if ClassifyTransportError(nil) != nil {
		t.Error("Expected nil for nil error")
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("elevenlabs: %w", ErrMissingCredentials), KindMissingCredentials},
		{fmt.Errorf("%w: slow", ErrProviderTimeout), KindTimeout},
		{ErrProviderUnavailable, KindUnavailable},
		{ErrProviderFailure, KindProviderError},
		{fmt.Errorf("gemini: %w", &entities.WordError{Index: 2, Field: "start"}), KindInvalidWords},
		{ErrEmptyAudio, KindEmptyAudio},
		{errors.New("unexpected"), KindInternal},
	}

	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestPublicMessage(t *testing.T) {
	if PublicMessage("no_such_kind") != PublicMessage(KindInternal) {
		t.Error("Unknown kinds should fall back to the internal message")
	}
	if PublicMessage(KindEmptyAudio) == "" {
		t.Error("Expected a message for empty audio")
	}
}
