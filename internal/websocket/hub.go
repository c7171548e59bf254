package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/scribe/domain"
	"github.com/satriahrh/scribe/domain/entities"
	"github.com/satriahrh/scribe/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer.
	maxMessageSize = 512 * 1024

	defaultMaxAudioBytes     = 100 << 20
	defaultTranscribeTimeout = 3 * time.Minute
)

// Transcriber is the part of the transcription usecase the hub needs
type Transcriber interface {
	Transcribe(ctx context.Context, in usecase.TranscribeInput) (*entities.TranscriptionResult, error)
}

// HubConfig configures upload limits and origin checks
type HubConfig struct {
	// AllowedOrigins lists browser origins allowed to connect; empty or "*" allows any
	AllowedOrigins    []string
	MaxAudioBytes     int
	TranscribeTimeout time.Duration
}

// Hub maintains the set of active clients
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	// Closed when Run returns
	done chan struct{}

	transcriber       Transcriber
	validator         *MessageValidator
	upgrader          websocket.Upgrader
	maxAudioBytes     int
	transcribeTimeout time.Duration

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(transcriber Transcriber, config HubConfig, logger *zap.Logger) *Hub {
	h := &Hub{
		clients:           make(map[string]*Client),
		register:          make(chan *Client),
		unregister:        make(chan *Client),
		done:              make(chan struct{}),
		transcriber:       transcriber,
		validator:         NewMessageValidator(),
		maxAudioBytes:     config.MaxAudioBytes,
		transcribeTimeout: config.TranscribeTimeout,
		logger:            logger,
	}
	if h.maxAudioBytes <= 0 {
		h.maxAudioBytes = defaultMaxAudioBytes
	}
	if h.transcribeTimeout <= 0 {
		h.transcribeTimeout = defaultTranscribeTimeout
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:     originChecker(config.AllowedOrigins),
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return h
}

// originChecker allows requests without an Origin header (non-browser
// clients) and browser requests from the allowed origins.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(origin, "/")] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}

// Run starts the hub's main loop until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				client.closeSend()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.closeSend()
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))
		}
	}
}

// ActiveClients returns the number of connected clients
func (h *Hub) ActiveClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Guards send against writes after close
	sendMu     sync.RWMutex
	sendClosed bool

	id     string
	logger *zap.Logger

	// Upload state, guarded by mutex
	mutex          sync.Mutex
	listening      bool
	audio          bytes.Buffer
	chunkCount     int
	upload         ListeningStartMessage
	listeningStart time.Time

	// Cancels in-flight transcriptions when the connection goes away
	ctx    context.Context
	cancel context.CancelFunc
}

// HandleWebSocket upgrades the request and starts the client pumps
func HandleWebSocket(hub *Hub, c echo.Context) error {
	conn, err := hub.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already replied with an HTTP error
		hub.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return nil
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan WriteData, 256),
		id:     id,
		logger: hub.logger.With(zap.String("clientID", id)),
		ctx:    ctx,
		cancel: cancel,
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		cancel()
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processBinaryAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendJSON queues a JSON text frame, dropping it if the client is gone or
// its buffer is full.
func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.sendClosed {
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Send buffer full, dropping message")
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

func (c *Client) sendError(code, message, details string) {
	c.sendJSON(CreateErrorMessage(code, message, details))
}

// processMessage processes incoming control messages
func (c *Client) processMessage(message []byte) {
	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid message", zap.Error(err))
		c.sendError(ErrorCodeInvalidMessage, "Invalid message.", err.Error())
		return
	}

	switch m := msg.(type) {
	case *ListeningStartMessage:
		c.handleListeningStart(m)
	case *ListeningEndMessage:
		c.handleListeningEnd()
	case *PingMessage:
		c.sendJSON(CreatePongMessage(m.Data))
	}
}

// processBinaryAudioChunk appends audio to the open upload
func (c *Client) processBinaryAudioChunk(data []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.listening {
		c.logger.Warn("Received binary audio chunk but no upload is open")
		c.sendError(ErrorCodeNotListening, "Send listening_start before audio.", "")
		return
	}

	if c.audio.Len()+len(data) > c.hub.maxAudioBytes {
		c.logger.Warn("Upload exceeds size limit",
			zap.Int("buffered", c.audio.Len()),
			zap.Int("limit", c.hub.maxAudioBytes))
		c.resetUpload()
		c.sendError(ErrorCodeAudioTooLarge, "Audio file is too large.", "")
		return
	}

	c.audio.Write(data)
	c.chunkCount++
	c.logger.Debug("Buffered audio chunk",
		zap.Int("size", len(data)),
		zap.Int("totalChunks", c.chunkCount))
}

// handleListeningStart opens a new upload, discarding any unfinished one
func (c *Client) handleListeningStart(msg *ListeningStartMessage) {
	c.mutex.Lock()
	if c.listening {
		c.logger.Warn("listening_start while an upload is open, discarding buffered audio",
			zap.Int("bytes", c.audio.Len()))
	}
	c.resetUpload()
	c.listening = true
	c.upload = *msg
	c.listeningStart = time.Now()
	c.mutex.Unlock()

	c.logger.Info("Upload started",
		zap.String("filename", msg.Filename),
		zap.String("language", msg.Language))
	c.sendJSON(CreateListeningStartAck(c.id))
}

// handleListeningEnd closes the upload and transcribes it in the background
func (c *Client) handleListeningEnd() {
	c.mutex.Lock()
	if !c.listening {
		c.mutex.Unlock()
		c.sendError(ErrorCodeNotListening, "No upload in progress.", "")
		return
	}
	audio := make([]byte, c.audio.Len())
	copy(audio, c.audio.Bytes())
	upload := c.upload
	chunks := c.chunkCount
	uploadDuration := time.Since(c.listeningStart)
	c.resetUpload()
	c.mutex.Unlock()

	c.logger.Info("Upload finished",
		zap.Int("bytes", len(audio)),
		zap.Int("chunks", chunks),
		zap.Duration("uploadDuration", uploadDuration))

	go c.transcribe(audio, upload)
}

func (c *Client) transcribe(audio []byte, upload ListeningStartMessage) {
	ctx, cancel := context.WithTimeout(c.ctx, c.hub.transcribeTimeout)
	defer cancel()

	started := time.Now()
	result, err := c.hub.transcriber.Transcribe(ctx, usecase.TranscribeInput{
		Audio:       audio,
		Filename:    upload.Filename,
		ContentType: upload.ContentType,
		Language:    upload.Language,
		NumSpeakers: upload.NumSpeakers,
		Source:      entities.SourceWebSocket,
	})
	if err != nil {
		kind := domain.Kind(err)
		c.logger.Error("Transcription failed", zap.String("kind", kind), zap.Error(err))
		c.sendError(kind, domain.PublicMessage(kind), "")
		return
	}

	c.sendJSON(CreateTranscriptionMessage(c.id, result, time.Since(started)))
}

// resetUpload clears upload state; callers hold c.mutex
func (c *Client) resetUpload() {
	c.listening = false
	c.audio.Reset()
	c.chunkCount = 0
	c.upload = ListeningStartMessage{}
}
