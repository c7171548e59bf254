package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/scribe/domain"
	"github.com/satriahrh/scribe/domain/entities"
	"github.com/satriahrh/scribe/domain/repositories"
	"github.com/satriahrh/scribe/internal/auth"
	"github.com/satriahrh/scribe/internal/websocket"
	"github.com/satriahrh/scribe/usecase"
)

const (
	defaultRequestLimit = 20
	maxRequestLimit     = 100
	maxNumSpeakers      = 32

	// DefaultMaxUploadBytes bounds a single uploaded audio file
	DefaultMaxUploadBytes int64 = 100 << 20
)

// Upload field names accepted for the audio file, in lookup order
var audioFields = []string{"audio", "file", "audio_file"}

// Transcriber is the usecase surface the handlers need
type Transcriber interface {
	Transcribe(ctx context.Context, in usecase.TranscribeInput) (*entities.TranscriptionResult, error)
	ListRecentRequests(ctx context.Context, limit int) ([]*entities.RequestRecord, error)
	Provider() (string, string)
}

var _ Transcriber = (*usecase.TranscriptionService)(nil)

// Dependencies wires the handlers to the rest of the service
type Dependencies struct {
	Transcription Transcriber
	// Tokens is nil when no realtime token provider is configured
	Tokens repositories.RealtimeTokenIssuer
	Hub    *websocket.Hub
	// TokenManager is nil when API auth is disabled
	TokenManager   *auth.TokenManager
	MaxUploadBytes int64
	Logger         *zap.Logger
}

type handlers struct {
	Dependencies
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies) {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = DefaultMaxUploadBytes
	}
	h := &handlers{Dependencies: deps}

	e.GET("/", h.root)
	e.GET("/health", h.health)

	var protected []echo.MiddlewareFunc
	if deps.TokenManager != nil {
		protected = append(protected, bearerAuth(deps.TokenManager, deps.Logger))
	} else {
		deps.Logger.Warn("API authentication disabled, API_JWT_SECRET is not set")
	}

	apiGroup := e.Group("/api", protected...)
	apiGroup.GET("/token", h.realtimeToken)
	apiGroup.POST("/transcribe", h.transcribe)
	apiGroup.GET("/requests", h.listRequests)

	if deps.Hub != nil {
		e.GET("/ws", func(c echo.Context) error {
			return websocket.HandleWebSocket(deps.Hub, c)
		}, protected...)
	}
}

func (h *handlers) root(c echo.Context) error {
	provider, model := h.Transcription.Provider()
	return c.JSON(http.StatusOK, map[string]string{
		"message":  "Speaker diarization API",
		"provider": provider,
		"model":    model,
	})
}

func (h *handlers) health(c echo.Context) error {
	provider, model := h.Transcription.Provider()
	return c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Provider: provider,
		Model:    model,
	})
}

func (h *handlers) realtimeToken(c echo.Context) error {
	if h.Tokens == nil {
		return h.fail(c, fmt.Errorf("realtime token: %w", domain.ErrMissingCredentials))
	}

	token, err := h.Tokens.IssueRealtimeToken(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, TokenResponse{Token: token.Token})
}

func (h *handlers) transcribe(c echo.Context) error {
	header, err := audioFile(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "No audio file provided.",
		})
	}
	if header.Size > h.MaxUploadBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "audio_too_large",
			Message: "Audio file is too large.",
		})
	}

	numSpeakers, err := parseNumSpeakers(c.FormValue("num_speakers"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
	}

	audio, err := readUpload(header)
	if err != nil {
		h.Logger.Error("Failed to read upload", zap.String("filename", header.Filename), zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Could not read the uploaded file.",
		})
	}

	h.Logger.Info("Received audio upload",
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size),
		zap.String("content_type", header.Header.Get(echo.HeaderContentType)))

	result, err := h.Transcription.Transcribe(c.Request().Context(), usecase.TranscribeInput{
		Audio:       audio,
		Filename:    header.Filename,
		ContentType: header.Header.Get(echo.HeaderContentType),
		Language:    strings.TrimSpace(c.FormValue("language")),
		NumSpeakers: numSpeakers,
		Source:      entities.SourceUpload,
	})
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, newTranscriptionResponse(result))
}

func (h *handlers) listRequests(c echo.Context) error {
	limit := defaultRequestLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "limit must be a positive integer",
			})
		}
		limit = min(n, maxRequestLimit)
	}

	records, err := h.Transcription.ListRecentRequests(c.Request().Context(), limit)
	if err != nil {
		h.Logger.Error("Failed to list request records", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   domain.KindInternal,
			Message: "Failed to load request history.",
		})
	}
	return c.JSON(http.StatusOK, RequestLogResponse{Requests: records, Count: len(records)})
}

// fail logs the full error and answers with the public message for its kind
func (h *handlers) fail(c echo.Context, err error) error {
	kind := domain.Kind(err)
	h.Logger.Error("Request failed",
		zap.String("path", c.Path()),
		zap.String("kind", kind),
		zap.Error(err))
	return c.JSON(StatusForKind(kind), ErrorResponse{
		Error:   kind,
		Message: domain.PublicMessage(kind),
	})
}

// StatusForKind maps an error kind onto an HTTP status code
func StatusForKind(kind string) int {
	switch kind {
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	case domain.KindEmptyAudio:
		return http.StatusBadRequest
	case domain.KindInvalidWords:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func audioFile(c echo.Context) (*multipart.FileHeader, error) {
	for _, field := range audioFields {
		header, err := c.FormFile(field)
		if err == nil {
			return header, nil
		}
		if !errors.Is(err, http.ErrMissingFile) {
			return nil, err
		}
	}
	return nil, http.ErrMissingFile
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func parseNumSpeakers(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > maxNumSpeakers {
		return 0, fmt.Errorf("num_speakers must be an integer between 0 and %d", maxNumSpeakers)
	}
	return n, nil
}

// bearerAuth validates client tokens from the Authorization header. The
// websocket route also accepts ?token= since browsers cannot set headers there.
func bearerAuth(tokens *auth.TokenManager, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var token string
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}
			if token == "" && c.Path() == "/ws" {
				token = c.QueryParam("token")
			}

			if token == "" {
				logger.Warn("Request rejected: missing token", zap.String("path", c.Path()))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "missing_token",
					Message: "JWT token is required in Authorization header",
				})
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				logger.Warn("Request rejected: invalid token", zap.String("path", c.Path()), zap.Error(err))
				status := http.StatusUnauthorized
				if errors.Is(err, auth.ErrInvalidRole) {
					status = http.StatusForbidden
				}
				return c.JSON(status, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired JWT token",
				})
			}

			c.Set("client_id", claims.ClientID)
			return next(c)
		}
	}
}
