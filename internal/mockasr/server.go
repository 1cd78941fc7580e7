// Package mockasr is an in-process stand-in for the streaming recognition
// service. It speaks the same URL scheme, signed query, and event wire
// format as the real backend, recognizing a fixed transcript instead of
// audio, so clients can be developed and tested offline.
package mockasr

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-go/tencentasr/pkg/tcauth"
)

const (
	defaultTranscript = "this is a mock transcript"

	// 16 kHz, 16-bit, mono: 32 bytes of PCM per millisecond.
	bytesPerMillisecond = 32

	codeBadRequest = 4001
	codeAuthFailed = 4002
)

// Config controls the mock's behavior.
type Config struct {
	// SecretKey verifies inbound signatures when non-empty. Leave it
	// empty to accept any caller.
	SecretKey string

	// Transcript is the text every session recognizes, revealed one word
	// per audio frame.
	Transcript string
}

// Server handles the streaming and whole-utterance recognition routes.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New builds a mock service.
func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Transcript == "" {
		cfg.Transcript = defaultTranscript
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router returns the HTTP surface: the streaming upgrade endpoint, the
// whole-utterance endpoint, and a health probe.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/asr/v2/{appid}", s.handleStream)
	r.Post("/asr/flash/v1/{appid}", s.handleFlash)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if err := s.authorize(r); err != nil {
		respondJSON(w, http.StatusForbidden, serverEvent{Code: codeAuthFailed, Message: err.Error()})
		return
	}
	voiceID := r.URL.Query().Get("voice_id")
	if voiceID == "" {
		respondJSON(w, http.StatusBadRequest, serverEvent{Code: codeBadRequest, Message: "voice_id is required"})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)
		return
	}
	s.logger.Info("session opened",
		"appid", chi.URLParam(r, "appid"),
		"voice_id", voiceID,
		"engine_model", r.URL.Query().Get("engine_model_type"))
	s.serveSession(conn, voiceID)
}

// serveSession drives one scripted conversation: acknowledgment, one word of
// the transcript per audio frame, and the closing sentence plus terminal
// event once the end-of-stream frame arrives.
func (s *Server) serveSession(conn *websocket.Conn, voiceID string) {
	defer conn.Close()

	send := func(ev serverEvent) bool {
		ev.VoiceID = voiceID
		ev.MessageID = uuid.NewString()
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			s.logger.Warn("event write failed", "voice_id", voiceID, "error", err)
			return false
		}
		return true
	}

	if !send(serverEvent{Message: "success"}) {
		return
	}

	words := strings.Fields(s.cfg.Transcript)
	frames := 0
	audioMs := 0
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Debug("session closed", "voice_id", voiceID, "frames", frames, "error", err)
			return
		}

		if mt == websocket.BinaryMessage {
			frames++
			audioMs += len(data) / bytesPerMillisecond
			n := min(frames, len(words))
			result := &serverResult{
				SliceType:    sliceInterim,
				EndTime:      audioMs,
				VoiceTextStr: strings.Join(words[:n], " "),
			}
			if frames == 1 {
				result.SliceType = sliceSentenceBegin
			}
			if !send(serverEvent{Result: result}) {
				return
			}
			continue
		}

		if !isEndFrame(data) {
			s.logger.Warn("unexpected text frame", "voice_id", voiceID, "payload", string(data))
			send(serverEvent{Code: codeBadRequest, Message: "unexpected text frame"})
			return
		}

		if frames > 0 {
			ok := send(serverEvent{Result: &serverResult{
				SliceType:    sliceSentenceEnd,
				EndTime:      audioMs,
				VoiceTextStr: strings.Join(words, " "),
				WordSize:     len(words),
			}})
			if !ok {
				return
			}
		}
		send(serverEvent{Message: "success", Final: 1})
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.logger.Info("session completed", "voice_id", voiceID, "frames", frames, "audio_ms", audioMs)
		return
	}
}

func (s *Server) handleFlash(w http.ResponseWriter, r *http.Request) {
	if err := s.authorize(r); err != nil {
		respondJSON(w, http.StatusForbidden, flashEnvelope{
			RequestID: uuid.NewString(), Code: codeAuthFailed, Message: err.Error(),
		})
		return
	}
	audio, err := io.ReadAll(r.Body)
	if err != nil || len(audio) == 0 {
		respondJSON(w, http.StatusBadRequest, flashEnvelope{
			RequestID: uuid.NewString(), Code: codeBadRequest, Message: "audio body is empty",
		})
		return
	}

	durationMs := len(audio) / bytesPerMillisecond
	respondJSON(w, http.StatusOK, flashEnvelope{
		RequestID:     uuid.NewString(),
		Message:       "success",
		AudioDuration: durationMs,
		FlashResult: []flashChannel{{
			Text: s.cfg.Transcript,
			SentenceList: []flashSentence{
				{Text: s.cfg.Transcript, EndTime: durationMs},
			},
		}},
	})
	s.logger.Info("flash request served",
		"appid", chi.URLParam(r, "appid"),
		"bytes", len(audio),
		"duration_ms", durationMs)
}

// authorize checks the signature query parameter when a secret key is
// configured.
func (s *Server) authorize(r *http.Request) error {
	if s.cfg.SecretKey == "" {
		return nil
	}
	sig := r.URL.Query().Get("signature")
	if sig == "" {
		return errors.New("missing signature")
	}
	if err := tcauth.VerifyToken(s.cfg.SecretKey, sig); err != nil {
		return fmt.Errorf("signature rejected: %w", err)
	}
	return nil
}

func isEndFrame(data []byte) bool {
	var frame struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return false
	}
	return frame.Type == "end"
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

const (
	sliceSentenceBegin = 0
	sliceInterim       = 1
	sliceSentenceEnd   = 2
)

// serverEvent is the wire form of one inbound message, written from the
// service side.
type serverEvent struct {
	Code      int           `json:"code"`
	Message   string        `json:"message"`
	VoiceID   string        `json:"voice_id"`
	MessageID string        `json:"message_id"`
	Final     int           `json:"final"`
	Result    *serverResult `json:"result,omitempty"`
}

type serverResult struct {
	SliceType    int    `json:"slice_type"`
	Index        int    `json:"index"`
	StartTime    int    `json:"start_time"`
	EndTime      int    `json:"end_time"`
	VoiceTextStr string `json:"voice_text_str"`
	WordSize     int    `json:"word_size,omitempty"`
}

type flashEnvelope struct {
	RequestID     string         `json:"request_id"`
	Code          int            `json:"code"`
	Message       string         `json:"message"`
	AudioDuration int            `json:"audio_duration"`
	FlashResult   []flashChannel `json:"flash_result,omitempty"`
}

type flashChannel struct {
	ChannelID    int             `json:"channel_id"`
	Text         string          `json:"text"`
	SentenceList []flashSentence `json:"sentence_list"`
}

type flashSentence struct {
	Text      string `json:"text"`
	StartTime int    `json:"start_time"`
	EndTime   int    `json:"end_time"`
	SpeakerID int    `json:"speaker_id"`
}
