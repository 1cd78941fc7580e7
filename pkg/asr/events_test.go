package asr

import (
	"testing"
)

func TestClassifyEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    EventKind
	}{
		{"started", `{"code":0,"message":"success","voice_id":"v1","message_id":"m1","final":0}`, EventStarted},
		{"result without slice type", `{"code":0,"final":0,"result":{"index":1,"voice_text_str":"x"}}`, EventStarted},
		{"sentence begin", `{"code":0,"final":0,"result":{"slice_type":0,"index":0}}`, EventSentenceBegin},
		{"interim", `{"code":0,"final":0,"result":{"slice_type":1,"index":0,"voice_text_str":"turn left"}}`, EventInterim},
		{"sentence end", `{"code":0,"final":0,"result":{"slice_type":2,"index":0,"voice_text_str":"turn left here"}}`, EventSentenceEnd},
		{"terminal without fragment", `{"code":0,"final":1}`, EventCompleted},
		{"terminal with sentence end", `{"code":0,"final":1,"result":{"slice_type":2,"index":1,"voice_text_str":"bye"}}`, EventSentenceEnd},
		{"server failure", `{"code":1005,"message":"session expired","voice_id":"v1","final":0}`, EventServerFailure},
		{"unknown slice type", `{"code":0,"final":0,"result":{"slice_type":7}}`, EventMalformed},
		{"not json", `pong`, EventMalformed},
		{"truncated json", `{"code":0,"result":{`, EventMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, _ := classifyEvent([]byte(tt.payload))
			if got != tt.want {
				t.Errorf("classifyEvent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyEvent_ZeroSliceTypeIsNotAbsent(t *testing.T) {
	kind, ev, err := classifyEvent([]byte(`{"code":0,"final":0,"result":{"slice_type":0,"index":2}}`))
	if err != nil {
		t.Fatalf("classifyEvent() error = %v", err)
	}
	if kind != EventSentenceBegin {
		t.Errorf("kind = %v, want %v", kind, EventSentenceBegin)
	}
	if ev.Result.SliceType == nil || *ev.Result.SliceType != SliceSentenceBegin {
		t.Errorf("SliceType = %v, want pointer to %d", ev.Result.SliceType, SliceSentenceBegin)
	}
}

func TestClassifyEvent_CarriesPayload(t *testing.T) {
	payload := `{"code":0,"message":"success","voice_id":"voice-9","message_id":"msg-3","final":1,` +
		`"result":{"slice_type":2,"index":1,"start_time":800,"end_time":2400,` +
		`"voice_text_str":"turn left here","word_size":3,` +
		`"word_list":[{"word":"turn","start_time":800,"end_time":1200,"stable_flag":1},` +
		`{"word":"left","start_time":1200,"end_time":1700,"stable_flag":1},` +
		`{"word":"here","start_time":1700,"end_time":2400,"stable_flag":0}]}}`

	kind, ev, err := classifyEvent([]byte(payload))
	if err != nil {
		t.Fatalf("classifyEvent() error = %v", err)
	}
	if kind != EventSentenceEnd {
		t.Fatalf("kind = %v, want %v", kind, EventSentenceEnd)
	}
	if !ev.IsFinal() {
		t.Error("IsFinal() = false, want true")
	}
	if ev.VoiceID != "voice-9" || ev.MessageID != "msg-3" {
		t.Errorf("ids = %q/%q, want voice-9/msg-3", ev.VoiceID, ev.MessageID)
	}
	r := ev.Result
	if r.VoiceTextStr != "turn left here" {
		t.Errorf("VoiceTextStr = %q, want %q", r.VoiceTextStr, "turn left here")
	}
	if r.WordSize != 3 || len(r.WordList) != 3 {
		t.Fatalf("words = %d/%d, want 3/3", r.WordSize, len(r.WordList))
	}
	last := r.WordList[2]
	if last.Word != "here" || last.StartTime != 1700 || last.EndTime != 2400 || last.StableFlag != 0 {
		t.Errorf("WordList[2] = %+v, want here/1700/2400/0", last)
	}
}

func TestEventKind_String(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{EventStarted, "started"},
		{EventSentenceBegin, "sentence_begin"},
		{EventInterim, "interim"},
		{EventSentenceEnd, "sentence_end"},
		{EventCompleted, "completed"},
		{EventServerFailure, "server_failure"},
		{EventMalformed, "malformed"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}
