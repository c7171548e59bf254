package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/scribe/domain"
	"github.com/satriahrh/scribe/domain/entities"
	"github.com/satriahrh/scribe/domain/repositories"
	"github.com/satriahrh/scribe/internal/auth"
	"github.com/satriahrh/scribe/usecase"
)

type fakeTranscriber struct {
	err       error
	input     usecase.TranscribeInput
	lastLimit int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, in usecase.TranscribeInput) (*entities.TranscriptionResult, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	words := []entities.Word{
		{Text: "hi", Start: 0.0, End: 0.3, SpeakerID: "A"},
		{Text: "there", Start: 0.3, End: 0.6, SpeakerID: "A"},
		{Text: "bye", Start: 0.6, End: 0.9, SpeakerID: "B"},
	}
	return &entities.TranscriptionResult{
		Transcription: entities.Transcription{Text: "hi there bye", Language: "en", Words: words, Provider: "fake"},
		Segments:      entities.GroupBySpeaker(words),
		SpeakerCount:  2,
	}, nil
}

func (f *fakeTranscriber) ListRecentRequests(ctx context.Context, limit int) ([]*entities.RequestRecord, error) {
	f.lastLimit = limit
	return []*entities.RequestRecord{entities.NewRequestRecord(entities.SourceUpload, "fake", "fake-1", time.Hour)}, nil
}

func (f *fakeTranscriber) Provider() (string, string) { return "fake", "fake-1" }

type fakeTokenIssuer struct {
	err error
}

func (f *fakeTokenIssuer) IssueRealtimeToken(ctx context.Context) (*repositories.RealtimeToken, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &repositories.RealtimeToken{Token: "sutkn_123"}, nil
}

func newTestServer(t *testing.T, deps Dependencies) *echo.Echo {
	t.Helper()
	if deps.Transcription == nil {
		deps.Transcription = &fakeTranscriber{}
	}
	deps.Logger = zaptest.NewLogger(t)
	e := echo.New()
	InitRoutes(e, deps)
	return e
}

func multipartRequest(t *testing.T, field, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if field != "" {
		part, err := writer.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		part.Write(content)
	}
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e := newTestServer(t, Dependencies{})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if resp.Status != "healthy" || resp.Provider != "fake" || resp.Model != "fake-1" {
		t.Errorf("Unexpected health %+v", resp)
	}

	if rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil)); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for root, got %d", rec.Code)
	}
}

func TestTranscribe(t *testing.T) {
	for _, field := range []string{"audio", "file", "audio_file"} {
		t.Run(field, func(t *testing.T) {
			transcriber := &fakeTranscriber{}
			e := newTestServer(t, Dependencies{Transcription: transcriber})

			req := multipartRequest(t, field, "call.wav", []byte("RIFF....WAVE"), map[string]string{
				"language":     "ko",
				"num_speakers": "2",
			})
			rec := serve(e, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
			}

			var resp TranscriptionResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}
			if !resp.Success || resp.FullTranscript != "hi there bye" {
				t.Errorf("Unexpected response %+v", resp)
			}
			want := []entities.SpeakerSegment{
				{Speaker: "A", Text: "hi there", Start: 0.0, End: 0.6},
				{Speaker: "B", Text: "bye", Start: 0.6, End: 0.9},
			}
			if len(resp.Speakers) != len(want) {
				t.Fatalf("Expected %d segments, got %+v", len(want), resp.Speakers)
			}
			for i := range want {
				if resp.Speakers[i] != want[i] {
					t.Errorf("Segment %d = %+v, want %+v", i, resp.Speakers[i], want[i])
				}
			}
			if len(resp.Words) != 3 || resp.SpeakerCount != 2 {
				t.Errorf("Unexpected words or speaker count %+v", resp)
			}

			in := transcriber.input
			if string(in.Audio) != "RIFF....WAVE" || in.Filename != "call.wav" || in.Language != "ko" || in.NumSpeakers != 2 {
				t.Errorf("Unexpected input %+v", in)
			}
			if in.Source != entities.SourceUpload {
				t.Errorf("Expected upload source, got %s", in.Source)
			}
		})
	}
}

func TestTranscribe_BadRequest(t *testing.T) {
	tests := []struct {
		name   string
		req    func(t *testing.T) *http.Request
		status int
	}{
		{
			name: "missing file",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "", "", nil, map[string]string{"language": "en"})
			},
			status: http.StatusBadRequest,
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/transcribe", strings.NewReader("{}"))
			},
			status: http.StatusBadRequest,
		},
		{
			name: "invalid num_speakers",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "audio", "a.wav", []byte("x"), map[string]string{"num_speakers": "many"})
			},
			status: http.StatusBadRequest,
		},
		{
			name: "too many speakers",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "audio", "a.wav", []byte("x"), map[string]string{"num_speakers": "99"})
			},
			status: http.StatusBadRequest,
		},
		{
			name: "file too large",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "audio", "a.wav", bytes.Repeat([]byte("x"), 64), nil)
			},
			status: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestServer(t, Dependencies{MaxUploadBytes: 32})
			rec := serve(e, tt.req(t))
			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTranscribe_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"missing credentials", fmt.Errorf("eleven labs: %w", domain.ErrMissingCredentials), http.StatusInternalServerError, domain.KindMissingCredentials},
		{"timeout", fmt.Errorf("eleven labs: %w", domain.ErrProviderTimeout), http.StatusGatewayTimeout, domain.KindTimeout},
		{"unavailable", fmt.Errorf("eleven labs: %w", domain.ErrProviderUnavailable), http.StatusServiceUnavailable, domain.KindUnavailable},
		{"provider failure", fmt.Errorf("eleven labs: status 422 secret body: %w", domain.ErrProviderFailure), http.StatusInternalServerError, domain.KindProviderError},
		{"malformed words", &entities.WordError{Index: 3, Field: "start"}, http.StatusBadGateway, domain.KindInvalidWords},
		{"empty audio", domain.ErrEmptyAudio, http.StatusBadRequest, domain.KindEmptyAudio},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, domain.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestServer(t, Dependencies{Transcription: &fakeTranscriber{err: tt.err}})

			rec := serve(e, multipartRequest(t, "audio", "a.wav", []byte("x"), nil))
			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, rec.Code)
			}

			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}
			if resp.Success || resp.Error != tt.kind || resp.Message != domain.PublicMessage(tt.kind) {
				t.Errorf("Unexpected error response %+v", resp)
			}
			if strings.Contains(rec.Body.String(), "secret body") {
				t.Error("Provider detail leaked into response")
			}
		})
	}
}

func TestRealtimeToken(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		e := newTestServer(t, Dependencies{})
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/token", nil))
		if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), domain.KindMissingCredentials) {
			t.Errorf("Unexpected response %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("issued", func(t *testing.T) {
		e := newTestServer(t, Dependencies{Tokens: &fakeTokenIssuer{}})
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/token", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		var resp TokenResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Token != "sutkn_123" {
			t.Errorf("Unexpected token %q", resp.Token)
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		e := newTestServer(t, Dependencies{Tokens: &fakeTokenIssuer{err: fmt.Errorf("status 401: %w", domain.ErrProviderFailure)}})
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/token", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("Expected 500, got %d", rec.Code)
		}
	})
}

func TestListRequests(t *testing.T) {
	tests := []struct {
		query     string
		status    int
		wantLimit int
	}{
		{"", http.StatusOK, defaultRequestLimit},
		{"?limit=5", http.StatusOK, 5},
		{"?limit=500", http.StatusOK, maxRequestLimit},
		{"?limit=abc", http.StatusBadRequest, 0},
		{"?limit=0", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			transcriber := &fakeTranscriber{}
			e := newTestServer(t, Dependencies{Transcription: transcriber})

			rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/requests"+tt.query, nil))
			if rec.Code != tt.status {
				t.Fatalf("Expected %d, got %d", tt.status, rec.Code)
			}
			if transcriber.lastLimit != tt.wantLimit {
				t.Errorf("Expected limit %d, got %d", tt.wantLimit, transcriber.lastLimit)
			}
		})
	}
}

func TestBearerAuth(t *testing.T) {
	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("Failed to create token manager: %v", err)
	}
	token, _, err := tokens.GenerateClientToken("dashboard")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	other, _ := auth.NewTokenManager("other-secret", time.Hour)
	foreign, _, _ := other.GenerateClientToken("dashboard")

	e := newTestServer(t, Dependencies{TokenManager: tokens})

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"health stays open", "/health", "", http.StatusOK},
		{"missing token", "/api/requests", "", http.StatusUnauthorized},
		{"valid token", "/api/requests", "Bearer " + token, http.StatusOK},
		{"foreign signature", "/api/requests", "Bearer " + foreign, http.StatusUnauthorized},
		{"malformed header", "/api/requests", token, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			if rec := serve(e, req); rec.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestStatusForKind(t *testing.T) {
	tests := map[string]int{
		domain.KindMissingCredentials: http.StatusInternalServerError,
		domain.KindTimeout:            http.StatusGatewayTimeout,
		domain.KindUnavailable:        http.StatusServiceUnavailable,
		domain.KindProviderError:      http.StatusInternalServerError,
		domain.KindInvalidWords:       http.StatusBadGateway,
		domain.KindEmptyAudio:         http.StatusBadRequest,
		domain.KindInternal:           http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := StatusForKind(kind); got != want {
			t.Errorf("StatusForKind(%s) = %d, want %d", kind, got, want)
		}
	}
}
