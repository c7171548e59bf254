// Command wsclient streams an audio file to the /ws endpoint and prints the
// speaker segments it gets back.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	ws "github.com/satriahrh/scribe/internal/websocket"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "server host:port")
	file := flag.String("file", "sample_audio.wav", "audio file to upload")
	language := flag.String("language", "", "optional language code")
	speakers := flag.Int("speakers", 0, "optional expected number of speakers")
	chunkSize := flag.Int("chunk", 32*1024, "bytes per binary frame")
	token := flag.String("token", os.Getenv("API_TOKEN"), "API token when auth is enabled")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	audio, err := os.ReadFile(*file)
	if err != nil {
		logger.Fatal("Failed to read audio file", zap.Error(err))
	}
	logger.Info("Read audio file", zap.String("path", *file), zap.Int("bytes", len(audio)))

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	headers := http.Header{}
	if *token != "" {
		headers.Add("Authorization", "Bearer "+*token)
	}

	logger.Info("Connecting", zap.String("url", u.String()))
	c, _, err := websocket.DefaultDialer.Dial(u.String(), headers)
	if err != nil {
		logger.Fatal("dial", zap.Error(err))
	}
	defer c.Close()

	done := make(chan struct{})
	go handleIncomingMessages(c, done, logger)

	if err := upload(c, audio, ws.ListeningStartMessage{
		BaseMessage: ws.BaseMessage{Type: ws.MessageTypeListeningStart},
		Filename:    filepath.Base(*file),
		Language:    *language,
		NumSpeakers: *speakers,
	}, *chunkSize, logger); err != nil {
		logger.Fatal("Upload failed", zap.Error(err))
	}

	select {
	case <-done:
	case <-interrupt:
		logger.Info("interrupt")
		// Cleanly close the connection by sending a close message and then
		// waiting (with timeout) for the server to close the connection.
		err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			logger.Error("write close", zap.Error(err))
			return
		}
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func upload(c *websocket.Conn, audio []byte, start ws.ListeningStartMessage, chunkSize int, logger *zap.Logger) error {
	if err := c.WriteJSON(start); err != nil {
		return fmt.Errorf("send listening_start: %w", err)
	}

	started := time.Now()
	chunks := 0
	for offset := 0; offset < len(audio); offset += chunkSize {
		end := min(offset+chunkSize, len(audio))
		if err := c.WriteMessage(websocket.BinaryMessage, audio[offset:end]); err != nil {
			return fmt.Errorf("send chunk %d: %w", chunks, err)
		}
		chunks++
	}
	logger.Info("Finished sending audio", zap.Int("chunks", chunks), zap.Duration("took", time.Since(started)))

	end := ws.ListeningEndMessage{BaseMessage: ws.BaseMessage{Type: ws.MessageTypeListeningEnd}}
	if err := c.WriteJSON(end); err != nil {
		return fmt.Errorf("send listening_end: %w", err)
	}
	return nil
}

func handleIncomingMessages(c *websocket.Conn, done chan struct{}, logger *zap.Logger) {
	defer close(done)

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			logger.Info("read", zap.Error(err))
			return
		}

		var base ws.BaseMessage
		if err := json.Unmarshal(message, &base); err != nil {
			logger.Warn("unmarshal error", zap.Error(err))
			continue
		}

		switch base.Type {
		case ws.MessageTypeListeningStart:
			logger.Info("Upload acknowledged")
		case ws.MessageTypeTranscription:
			var result ws.TranscriptionMessage
			if err := json.Unmarshal(message, &result); err != nil {
				logger.Error("Invalid transcription message", zap.Error(err))
				return
			}
			printResult(&result)
			return
		case ws.MessageTypeError:
			var errMsg ws.ErrorMessage
			json.Unmarshal(message, &errMsg)
			logger.Error("Server error", zap.String("code", errMsg.Code), zap.String("message", errMsg.Message))
			return
		default:
			logger.Info("Received message", zap.String("type", string(base.Type)))
		}
	}
}

func printResult(result *ws.TranscriptionMessage) {
	fmt.Printf("%d speakers, %d segments, %dms (%s)\n\n",
		result.SpeakerCount, len(result.Speakers), result.ProcessingTime, result.Provider)
	for _, segment := range result.Speakers {
		fmt.Printf("[%7.2f - %7.2f] %s: %s\n", segment.Start, segment.End, segment.Speaker, segment.Text)
	}
}
