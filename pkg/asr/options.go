package asr

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/vango-go/tencentasr/pkg/tcauth"
)

const (
	defaultVoiceFormat      = 1
	defaultWriteTimeout     = 5 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	defaultStopTimeout      = 10 * time.Second
)

// Option is a function that configures a Session. Options apply at
// construction, before Start.
type Option func(*Session)

// WithVoiceID sets a caller-supplied session identifier. When absent, a
// fresh UUID is generated for the session.
func WithVoiceID(id string) Option {
	return func(s *Session) {
		s.params.VoiceID = id
	}
}

// WithVoiceFormat sets the audio encoding id. Default 1 (16-bit PCM).
func WithVoiceFormat(format int) Option {
	return func(s *Session) {
		s.params.VoiceFormat = format
	}
}

// WithVAD toggles server-side voice activity detection. Default on.
func WithVAD(enabled bool) Option {
	return func(s *Session) {
		if enabled {
			s.params.NeedVAD = 1
		} else {
			s.params.NeedVAD = 0
		}
	}
}

// WithVADSilenceTime sets the silence threshold, in milliseconds, after
// which VAD closes a sentence. Zero leaves the service default.
func WithVADSilenceTime(ms int) Option {
	return func(s *Session) {
		s.params.VADSilenceTime = ms
	}
}

// WithMaxSpeakTime caps one utterance, in milliseconds. Zero leaves the
// service default.
func WithMaxSpeakTime(ms int) Option {
	return func(s *Session) {
		s.params.MaxSpeakTime = ms
	}
}

// WithHotwordID references an uploaded hotword vocabulary.
func WithHotwordID(id string) Option {
	return func(s *Session) {
		s.params.HotwordID = id
	}
}

// WithCustomizationID references a trained customization model.
func WithCustomizationID(id string) Option {
	return func(s *Session) {
		s.params.CustomizationID = id
	}
}

// WithFilterDirty sets profanity filtering (0 off, 1 filter, 2 replace).
func WithFilterDirty(mode int) Option {
	return func(s *Session) {
		s.params.FilterDirty = mode
	}
}

// WithFilterModal sets modal-particle filtering.
func WithFilterModal(mode int) Option {
	return func(s *Session) {
		s.params.FilterModal = mode
	}
}

// WithFilterPunc sets punctuation filtering.
func WithFilterPunc(mode int) Option {
	return func(s *Session) {
		s.params.FilterPunc = mode
	}
}

// WithConvertNumMode sets spoken-number conversion.
func WithConvertNumMode(mode int) Option {
	return func(s *Session) {
		s.params.ConvertNumMode = mode
	}
}

// WithWordInfo enables word-level timing in results.
func WithWordInfo(mode int) Option {
	return func(s *Session) {
		s.params.WordInfo = mode
	}
}

// WithWriteTimeout bounds each audio frame write. Default 5s.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.writeTimeout = d
	}
}

// WithHandshakeTimeout bounds the transport handshake. Default 10s.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.handshakeTimeout = d
	}
}

// WithStopTimeout sets the ceiling Stop waits for completion. Default 10s.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.stopTimeout = d
	}
}

// WithEndpoint overrides the service root, scheme included, e.g.
// "wss://asr.example.com". Used to target self-hosted or mock services.
func WithEndpoint(endpoint string) Option {
	return func(s *Session) {
		s.endpoint = endpoint
	}
}

// WithTokenProvider replaces the local HMAC token derivation, for callers
// that obtain tokens from an external issuer.
func WithTokenProvider(p tcauth.TokenProvider) Option {
	return func(s *Session) {
		s.tokenProvider = p
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithMetrics attaches session instruments. A nil Metrics disables
// instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithTracer enables a per-session span from Start to completion.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Session) {
		s.tracer = tracer
	}
}
