package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/vango-go/tencentasr/pkg/tcauth"
)

const (
	// DefaultFlashEndpoint is the production service root for
	// whole-utterance recognition.
	DefaultFlashEndpoint = "https://asr.cloud.tencent.com"

	flashPath = "asr/flash/v1"

	defaultFlashVoiceFormat = "pcm"
	defaultFlashTimeout     = 60 * time.Second
)

// FlashRecognizer transcribes a complete utterance in one request. Unlike a
// Session there is no lifecycle: each Recognize call is independent and a
// recognizer may be reused across requests and goroutines.
type FlashRecognizer struct {
	cred   *tcauth.Credential
	params flashParams

	endpoint   string
	httpClient *http.Client

	tokenProvider tcauth.TokenProvider
	logger        *slog.Logger

	now     func() time.Time
	nonceFn func() int64
}

// FlashOption configures a FlashRecognizer.
type FlashOption func(*FlashRecognizer)

// WithFlashEndpoint overrides the service root.
func WithFlashEndpoint(endpoint string) FlashOption {
	return func(f *FlashRecognizer) { f.endpoint = endpoint }
}

// WithFlashHTTPClient supplies the HTTP client, for custom transports or
// timeouts.
func WithFlashHTTPClient(client *http.Client) FlashOption {
	return func(f *FlashRecognizer) { f.httpClient = client }
}

// WithFlashVoiceFormat sets the audio container name, e.g. "pcm", "wav" or
// "mp3".
func WithFlashVoiceFormat(format string) FlashOption {
	return func(f *FlashRecognizer) { f.params.VoiceFormat = format }
}

// WithFlashTokenProvider overrides how credential tokens are derived.
func WithFlashTokenProvider(p tcauth.TokenProvider) FlashOption {
	return func(f *FlashRecognizer) { f.tokenProvider = p }
}

// WithFlashLogger sets the structured logger.
func WithFlashLogger(logger *slog.Logger) FlashOption {
	return func(f *FlashRecognizer) { f.logger = logger }
}

// WithFlashFilterDirty sets profanity filtering (0 off, 1 filter, 2 replace).
func WithFlashFilterDirty(mode int) FlashOption {
	return func(f *FlashRecognizer) { f.params.FilterDirty = mode }
}

// WithFlashFilterModal sets filler-word filtering.
func WithFlashFilterModal(mode int) FlashOption {
	return func(f *FlashRecognizer) { f.params.FilterModal = mode }
}

// WithFlashFilterPunc sets punctuation filtering.
func WithFlashFilterPunc(mode int) FlashOption {
	return func(f *FlashRecognizer) { f.params.FilterPunc = mode }
}

// WithFlashConvertNumMode sets numeral conversion.
func WithFlashConvertNumMode(mode int) FlashOption {
	return func(f *FlashRecognizer) { f.params.ConvertNumMode = mode }
}

// WithFlashWordInfo requests word-level timestamps.
func WithFlashWordInfo(mode int) FlashOption {
	return func(f *FlashRecognizer) { f.params.WordInfo = mode }
}

// WithFlashFirstChannelOnly restricts recognition to the first audio
// channel.
func WithFlashFirstChannelOnly(on bool) FlashOption {
	return func(f *FlashRecognizer) {
		if on {
			f.params.FirstChannelOnly = 1
		} else {
			f.params.FirstChannelOnly = 0
		}
	}
}

// WithFlashSpeakerDiarization enables speaker separation.
func WithFlashSpeakerDiarization(on bool) FlashOption {
	return func(f *FlashRecognizer) {
		if on {
			f.params.SpeakerDiarization = 1
		} else {
			f.params.SpeakerDiarization = 0
		}
	}
}

// WithFlashHotwordID selects a hotword vocabulary.
func WithFlashHotwordID(id string) FlashOption {
	return func(f *FlashRecognizer) { f.params.HotwordID = id }
}

// WithFlashCustomizationID selects a self-trained model.
func WithFlashCustomizationID(id string) FlashOption {
	return func(f *FlashRecognizer) { f.params.CustomizationID = id }
}

// NewFlashRecognizer builds a recognizer for the given credential and engine
// model.
func NewFlashRecognizer(cred *tcauth.Credential, engineModel string, opts ...FlashOption) (*FlashRecognizer, error) {
	if cred == nil {
		return nil, NewInvalidParamError("credential is required")
	}
	if engineModel == "" {
		return nil, NewInvalidParamError("engine model is required")
	}

	f := &FlashRecognizer{
		cred: cred,
		params: flashParams{
			AccountID:   cred.AccountID,
			EngineModel: engineModel,
			VoiceFormat: defaultFlashVoiceFormat,
		},
		endpoint:      DefaultFlashEndpoint,
		httpClient:    &http.Client{Timeout: defaultFlashTimeout},
		tokenProvider: tcauth.HMACTokenProvider{},
		logger:        slog.Default(),
		now:           time.Now,
		nonceFn:       func() int64 { return 1 + rand.Int64N(999999999) },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Recognize submits one complete utterance and blocks until the transcript
// envelope arrives or ctx is done.
func (f *FlashRecognizer) Recognize(ctx context.Context, audio []byte) (*FlashResult, error) {
	if len(audio) == 0 {
		return nil, NewInvalidParamError("audio is empty")
	}

	requestTag := uuid.NewString()
	token, err := f.cred.Token(f.tokenProvider, requestTag)
	if err != nil {
		return nil, NewAuthFailedError("token derivation failed", err)
	}

	params := f.params
	params.Timestamp = f.now().Unix()
	params.Nonce = f.nonceFn()

	u := fmt.Sprintf("%s/%s/%d?%s", f.endpoint, flashPath, params.AccountID, params.EncodeSigned(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(audio))
	if err != nil {
		return nil, NewInvalidParamError("building flash request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(HeaderAppID, strconv.FormatInt(f.cred.AppID, 10))
	req.Header.Set(HeaderToken, token)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if IsTimeout(err) {
			return nil, NewTimeoutError("flash request timed out")
		}
		return nil, NewConnectFailedError("flash request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewReadFailedError("reading flash response", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := body
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, NewServerError(resp.StatusCode, "flash request rejected: "+string(snippet), "")
	}

	var env flashResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, NewReadFailedError("malformed flash response", err)
	}
	if env.Code != 0 {
		return nil, NewServerError(env.Code, env.Message, "")
	}

	f.logger.Info("flash recognition complete",
		"request_id", env.RequestID,
		"audio_duration_ms", env.AudioDuration,
		"channels", len(env.FlashResult))

	return &FlashResult{
		RequestID:     env.RequestID,
		AudioDuration: env.AudioDuration,
		Channels:      env.FlashResult,
	}, nil
}

// FlashResult is the transcript of one whole-utterance request.
type FlashResult struct {
	RequestID     string
	AudioDuration int64
	Channels      []FlashChannelResult
}

// FlashChannelResult is the transcript of one audio channel.
type FlashChannelResult struct {
	ChannelID int             `json:"channel_id"`
	Text      string          `json:"text"`
	Sentences []FlashSentence `json:"sentence_list"`
}

// FlashSentence is one recognized sentence with millisecond offsets.
type FlashSentence struct {
	Text      string `json:"text"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	SpeakerID int    `json:"speaker_id"`
}

type flashResponse struct {
	Code          int                  `json:"code"`
	Message       string               `json:"message"`
	RequestID     string               `json:"request_id"`
	AudioDuration int64                `json:"audio_duration"`
	FlashResult   []FlashChannelResult `json:"flash_result"`
}

// flashParams are the query parameters of a whole-utterance request. The
// encoding rules match RequestParams: zero values omitted, keys sorted,
// signature appended last.
type flashParams struct {
	AccountID          int64
	EngineModel        string
	Timestamp          int64
	Nonce              int64
	VoiceFormat        string
	HotwordID          string
	CustomizationID    string
	FilterDirty        int
	FilterModal        int
	FilterPunc         int
	ConvertNumMode     int
	WordInfo           int
	FirstChannelOnly   int
	SpeakerDiarization int
}

func (p *flashParams) pairs() []queryPair {
	var pairs []queryPair
	addStr := func(k, v string) {
		if v != "" {
			pairs = append(pairs, queryPair{k, v})
		}
	}
	addInt := func(k string, v int64) {
		if v != 0 {
			pairs = append(pairs, queryPair{k, strconv.FormatInt(v, 10)})
		}
	}

	addInt("secretid", p.AccountID)
	addStr("engine_model_type", p.EngineModel)
	addInt("timestamp", p.Timestamp)
	addInt("nonce", p.Nonce)
	addStr("voice_format", p.VoiceFormat)
	addStr("hotword_id", p.HotwordID)
	addStr("customization_id", p.CustomizationID)
	addInt("filter_dirty", int64(p.FilterDirty))
	addInt("filter_modal", int64(p.FilterModal))
	addInt("filter_punc", int64(p.FilterPunc))
	addInt("convert_num_mode", int64(p.ConvertNumMode))
	addInt("word_info", int64(p.WordInfo))
	addInt("first_channel_only", int64(p.FirstChannelOnly))
	addInt("speaker_diarization", int64(p.SpeakerDiarization))
	return pairs
}

func (p *flashParams) Encode() string {
	return encodeQuery(p.pairs())
}

func (p *flashParams) EncodeSigned(token string) string {
	q := p.Encode()
	if q == "" {
		return "signature=" + url.QueryEscape(token)
	}
	return q + "&signature=" + url.QueryEscape(token)
}
