package asr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-go/tencentasr/pkg/tcauth"
)

// State is the lifecycle position of a Session.
type State int

const (
	// StateIdle is the initial state before Start.
	StateIdle State = iota
	// StateStarting covers token derivation and the transport handshake.
	StateStarting
	// StateRunning accepts audio writes and dispatches inbound events.
	StateRunning
	// StateStopping drains completion after the end-of-stream frame.
	StateStopping
	// StateStopped is terminal. A stopped session cannot be reused.
	StateStopped
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// endOfStreamFrame tells the service no more audio follows. It is a text
// frame, distinct from the binary audio frames.
const endOfStreamFrame = `{"type":"end"}`

// Session is a single streaming recognition conversation over one
// authenticated WebSocket connection. A Session is single-use: once stopped
// it cannot be restarted.
//
// The write side is caller-driven: each Write sends exactly one binary
// frame. The read side runs on one goroutine that classifies inbound events
// and dispatches them to the Listener in receive order.
type Session struct {
	cred     *tcauth.Credential
	listener Listener
	params   RequestParams

	endpoint         string
	writeTimeout     time.Duration
	handshakeTimeout time.Duration
	stopTimeout      time.Duration

	tokenProvider tcauth.TokenProvider
	logger        *slog.Logger
	metrics       *Metrics
	tracer        trace.Tracer

	// Clock and nonce sources, replaceable in tests for deterministic
	// query strings.
	now     func() time.Time
	nonceFn func() int64

	mu    sync.Mutex
	state State
	conn  *websocket.Conn
	span  trace.Span

	// writeMu serializes audio frames against the end-of-stream frame.
	writeMu sync.Mutex

	done     chan struct{}
	doneOnce sync.Once
}

// NewSession builds an idle session for the given credential and engine
// model (e.g. "16k_zh"). The listener receives classified events. All
// configuration happens here, through options, before Start.
func NewSession(cred *tcauth.Credential, engineModel string, listener Listener, opts ...Option) (*Session, error) {
	if cred == nil {
		return nil, NewInvalidParamError("credential is required")
	}
	if engineModel == "" {
		return nil, NewInvalidParamError("engine model is required")
	}
	if listener == nil {
		return nil, NewInvalidParamError("listener is required")
	}

	s := &Session{
		cred:     cred,
		listener: listener,
		params: RequestParams{
			AccountID:   cred.AccountID,
			EngineModel: engineModel,
			VoiceFormat: defaultVoiceFormat,
			NeedVAD:     1,
		},
		endpoint:         DefaultEndpoint,
		writeTimeout:     defaultWriteTimeout,
		handshakeTimeout: defaultHandshakeTimeout,
		stopTimeout:      defaultStopTimeout,
		tokenProvider:    tcauth.HMACTokenProvider{},
		logger:           slog.Default(),
		now:              time.Now,
		nonceFn:          func() int64 { return 1 + rand.Int64N(999999999) },
		done:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.params.VoiceID == "" {
		s.params.VoiceID = uuid.NewString()
	}
	return s, nil
}

// VoiceID returns this session's identifier, sent as voice_id.
func (s *Session) VoiceID() string {
	return s.params.VoiceID
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed exactly once when the session completes, whatever the
// trigger: terminal event, fatal server status, transport loss, or the stop
// ceiling.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Start derives or reuses the credential token, signs the connection
// parameters, and opens the transport. Valid only from the idle state;
// concurrent calls are rejected, not queued. On failure the session returns
// to idle and may be started again.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateIdle:
	case StateStopped:
		s.mu.Unlock()
		return NewAlreadyStoppedError()
	default:
		s.mu.Unlock()
		return NewAlreadyStartedError()
	}
	s.state = StateStarting
	s.mu.Unlock()

	token, err := s.cred.Token(s.tokenProvider, s.params.VoiceID)
	if err != nil {
		s.revertToIdle()
		return NewAuthFailedError("token derivation failed", err)
	}

	now := s.now()
	params := s.params
	params.Timestamp = now.Unix()
	params.Expired = now.Add(tcauth.TokenValidity).Unix()
	params.Nonce = s.nonceFn()

	u := fmt.Sprintf("%s/%s/%d?%s", s.endpoint, streamPath, params.AccountID, params.EncodeSigned(token))
	header := http.Header{}
	header.Set(HeaderAppID, strconv.FormatInt(s.cred.AppID, 10))
	header.Set(HeaderToken, token)

	dialer := websocket.Dialer{HandshakeTimeout: s.handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, u, header)
	if err != nil {
		s.revertToIdle()
		if detail := handshakeDetail(resp); detail != "" {
			return NewConnectFailedError("handshake rejected: "+detail, err)
		}
		return NewConnectFailedError("failed to open transport", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.state = StateRunning
	if s.tracer != nil {
		_, s.span = s.tracer.Start(ctx, "asr.session", trace.WithAttributes(
			attribute.String("asr.voice_id", params.VoiceID),
			attribute.String("asr.engine_model", params.EngineModel),
		))
	}
	s.mu.Unlock()

	s.metrics.sessionStarted()
	s.logger.Info("asr session running",
		"voice_id", params.VoiceID,
		"engine_model", params.EngineModel)

	go s.readLoop(conn)
	return nil
}

// Write sends one audio chunk as exactly one binary frame. There is no
// buffering, coalescing, or retry; the call returns once the frame is
// written or the write timeout fires. A failed write leaves the session
// running.
func (s *Session) Write(audio []byte) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return NewNotStartedError("write")
	}
	conn := s.conn
	s.mu.Unlock()

	s.writeMu.Lock()
	start := time.Now()
	conn.SetWriteDeadline(start.Add(s.writeTimeout))
	err := conn.WriteMessage(websocket.BinaryMessage, audio)
	s.writeMu.Unlock()

	if err != nil {
		s.metrics.failure(ErrWriteFailed)
		if IsTimeout(err) {
			return NewWriteFailedError("audio write timed out", err)
		}
		return NewWriteFailedError("audio write failed", err)
	}
	s.metrics.observeWrite(time.Since(start), len(audio))
	return nil
}

// Stop sends the end-of-stream frame and waits for the read side to observe
// completion, bounded by the stop ceiling. The state is Stopped when Stop
// returns, whatever the outcome; a ceiling hit is reported as a timeout
// error.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return NewNotStartedError("stop")
	}
	conn := s.conn
	if conn == nil {
		s.state = StateStopped
		s.mu.Unlock()
		s.signalCompletion()
		return NewNotStartedError("stop")
	}
	s.state = StateStopping
	s.mu.Unlock()

	s.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	err := conn.WriteMessage(websocket.TextMessage, []byte(endOfStreamFrame))
	s.writeMu.Unlock()
	if err != nil {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		conn.Close()
		s.signalCompletion()
		s.logger.Warn("asr end-of-stream write failed",
			"voice_id", s.params.VoiceID,
			"error", err)
		return NewWriteFailedError("end-of-stream write failed", err)
	}

	timedOut := false
	select {
	case <-s.done:
	case <-time.After(s.stopTimeout):
		timedOut = true
	}

	conn.Close()
	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.signalCompletion()

	s.logger.Info("asr session stopped",
		"voice_id", s.params.VoiceID,
		"timed_out", timedOut)
	if timedOut {
		return NewTimeoutError("stop ceiling elapsed before completion")
	}
	return nil
}

func (s *Session) revertToIdle() {
	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
}

// signalCompletion releases the completion signal. Safe to call from any
// trigger path, any number of times.
func (s *Session) signalCompletion() {
	s.doneOnce.Do(func() {
		close(s.done)
		s.metrics.sessionEnded()
		s.mu.Lock()
		span := s.span
		s.mu.Unlock()
		if span != nil {
			span.End()
		}
	})
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleClosure(err)
			return
		}
		if s.handleFrame(data) {
			return
		}
	}
}

// handleFrame classifies and dispatches one inbound frame, reporting
// whether the read loop should exit. Listener callbacks always run without
// the session lock held.
func (s *Session) handleFrame(data []byte) bool {
	kind, ev, err := classifyEvent(data)
	s.metrics.event(kind)

	switch kind {
	case EventMalformed:
		s.metrics.failure(ErrReadFailed)
		s.logger.Warn("asr payload did not classify",
			"voice_id", s.params.VoiceID,
			"error", err)
		s.listener.OnFail(nil, NewReadFailedError("malformed inbound payload", err))
		return false

	case EventServerFailure:
		s.mu.Lock()
		s.state = StateStopped
		conn := s.conn
		s.mu.Unlock()
		s.metrics.failure(ErrServerError)
		s.logger.Warn("asr server reported failure",
			"voice_id", s.params.VoiceID,
			"code", ev.Code,
			"message", ev.Message)
		s.listener.OnFail(ev, NewServerError(ev.Code, ev.Message, ev.VoiceID))
		if conn != nil {
			conn.Close()
		}
		s.signalCompletion()
		return true

	case EventStarted:
		s.listener.OnRecognitionStart(ev)
	case EventSentenceBegin:
		s.listener.OnSentenceBegin(ev)
	case EventInterim:
		s.listener.OnRecognitionResultChange(ev)
	case EventSentenceEnd:
		s.listener.OnSentenceEnd(ev)
	case EventCompleted:
		// Terminal event with no fragment attached: completion fires
		// below, no classification callback.
	}

	if ev.IsFinal() {
		s.listener.OnRecognitionComplete(ev)
		s.signalCompletion()
		return true
	}
	return false
}

// handleClosure runs when the transport read fails. Closure during Stopping
// is the normal end of stream; any earlier closure is synthesized into a
// failure callback.
func (s *Session) handleClosure(err error) {
	s.mu.Lock()
	if s.state >= StateStopping {
		s.mu.Unlock()
		s.logger.Debug("asr transport closed", "voice_id", s.params.VoiceID)
		s.signalCompletion()
		return
	}
	s.state = StateStopped
	conn := s.conn
	s.mu.Unlock()

	s.metrics.failure(ErrReadFailed)
	s.logger.Warn("asr transport closed unexpectedly",
		"voice_id", s.params.VoiceID,
		"error", err)
	s.listener.OnFail(nil, NewReadFailedError("connection closed unexpectedly", err))
	if conn != nil {
		conn.Close()
	}
	s.signalCompletion()
}

func handshakeDetail(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if len(body) == 0 {
		return resp.Status
	}
	return resp.Status + ": " + string(body)
}
