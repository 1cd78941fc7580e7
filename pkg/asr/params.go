package asr

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	// DefaultEndpoint is the production service root for streaming
	// recognition.
	DefaultEndpoint = "wss://asr.cloud.tencent.com"

	// streamPath is the protocol/version segment of the streaming URL.
	streamPath = "asr/v2"
)

// Identity headers sent redundantly with the signed query, for
// intermediaries that strip query parameters.
const (
	HeaderAppID = "X-Asr-Appid"
	HeaderToken = "X-Asr-Token"
)

// RequestParams are the connection parameters serialized into the query
// string of a streaming session. Zero-valued fields are omitted from the
// serialized form; only explicitly set values are transmitted.
type RequestParams struct {
	// AccountID is embedded in the URL path and sent as secretid.
	AccountID int64

	// EngineModel selects the recognition model, e.g. "16k_zh".
	EngineModel string

	// VoiceID is the unique session identifier.
	VoiceID string

	// Timestamp and Expired are unix seconds; Expired is Timestamp plus
	// the token validity window.
	Timestamp int64
	Expired   int64

	// Nonce is a bounded random integer regenerated per session.
	Nonce int64

	// VoiceFormat is the audio encoding id. Default 1 (16-bit PCM).
	VoiceFormat int

	// NeedVAD enables server-side voice activity detection. Default 1.
	NeedVAD int

	// Optional tuning fields, transmitted only when non-zero.
	HotwordID       string
	CustomizationID string
	FilterDirty     int
	FilterModal     int
	FilterPunc      int
	ConvertNumMode  int
	WordInfo        int
	VADSilenceTime  int
	MaxSpeakTime    int
}

func (p *RequestParams) pairs() []queryPair {
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
	addStr("voice_id", p.VoiceID)
	addInt("timestamp", p.Timestamp)
	addInt("expired", p.Expired)
	addInt("nonce", p.Nonce)
	addInt("voice_format", int64(p.VoiceFormat))
	addInt("needvad", int64(p.NeedVAD))
	addStr("hotword_id", p.HotwordID)
	addStr("customization_id", p.CustomizationID)
	addInt("filter_dirty", int64(p.FilterDirty))
	addInt("filter_modal", int64(p.FilterModal))
	addInt("filter_punc", int64(p.FilterPunc))
	addInt("convert_num_mode", int64(p.ConvertNumMode))
	addInt("word_info", int64(p.WordInfo))
	addInt("vad_silence_time", int64(p.VADSilenceTime))
	addInt("max_speak_time", int64(p.MaxSpeakTime))
	return pairs
}

// Encode returns the unsigned query string: keys sorted lexicographically,
// zero-valued fields omitted.
func (p *RequestParams) Encode() string {
	return encodeQuery(p.pairs())
}

// EncodeSigned returns the signed query string: Encode() with the signature
// appended last. The signature never participates in the sorted key set.
func (p *RequestParams) EncodeSigned(token string) string {
	q := p.Encode()
	if q == "" {
		return "signature=" + url.QueryEscape(token)
	}
	return q + "&signature=" + url.QueryEscape(token)
}

type queryPair struct {
	key   string
	value string
}

func encodeQuery(pairs []queryPair) string {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })
	var b strings.Builder
	for i, kv := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(kv.key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv.value))
	}
	return b.String()
}
