package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/satriahrh/scribe/domain/entities"
)

// Provider error taxonomy. Adapters wrap these with fmt.Errorf("...: %w")
// so handlers can map them onto transport status codes.
var (
	ErrMissingCredentials  = errors.New("speech-to-text credentials are not configured")
	ErrProviderTimeout     = errors.New("speech-to-text provider timed out")
	ErrProviderUnavailable = errors.New("speech-to-text provider is unreachable")
	ErrProviderFailure     = errors.New("speech-to-text provider returned an error")
	ErrEmptyAudio          = errors.New("audio payload is empty")
)

// Error kinds reported to clients and stored on request records.
const (
	KindMissingCredentials = "missing_credentials"
	KindTimeout            = "timeout"
	KindUnavailable        = "unavailable"
	KindProviderError      = "provider_error"
	KindInvalidWords       = "invalid_words"
	KindEmptyAudio         = "empty_audio"
	KindInternal           = "internal_error"
)

var publicMessages = map[string]string{
	KindMissingCredentials: "API authentication failed. Check the server configuration.",
	KindTimeout:            "Processing timed out. The audio file may be too large.",
	KindUnavailable:        "Cannot reach the speech-to-text service. Please try again later.",
	KindProviderError:      "Speaker diarization failed.",
	KindInvalidWords:       "The speech-to-text service returned malformed data.",
	KindEmptyAudio:         "Audio file is empty.",
	KindInternal:           "Speaker diarization failed.",
}

// ClassifyTransportError maps a failed provider call onto the taxonomy.
// Deadline and network timeouts become ErrProviderTimeout, dial and
// connection failures become ErrProviderUnavailable, and everything else
// becomes ErrProviderFailure. The original error stays in the chain.
func ClassifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrMissingCredentials) || errors.Is(err, ErrProviderTimeout) ||
		errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrProviderFailure) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrProviderTimeout, err)
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	return fmt.Errorf("%w: %w", ErrProviderFailure, err)
}

// Kind returns the error kind for err.
func Kind(err error) string {
	var wordErr *entities.WordError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingCredentials):
		return KindMissingCredentials
	case errors.Is(err, ErrProviderTimeout):
		return KindTimeout
	case errors.Is(err, ErrProviderUnavailable):
		return KindUnavailable
	case errors.As(err, &wordErr):
		return KindInvalidWords
	case errors.Is(err, ErrProviderFailure):
		return KindProviderError
	case errors.Is(err, ErrEmptyAudio):
		return KindEmptyAudio
	default:
		return KindInternal
	}
}

// PublicMessage returns the client-facing message for an error kind.
// Provider details never leave the server.
func PublicMessage(kind string) string {
	if msg, ok := publicMessages[kind]; ok {
		return msg
	}
	return publicMessages[KindInternal]
}
