package asr

import (
	"encoding/json"
	"fmt"
)

// Slice kinds carried in Result.SliceType, classifying a transcript
// fragment within a spoken sentence.
const (
	SliceSentenceBegin = 0
	SliceInterim       = 1
	SliceSentenceEnd   = 2
)

// Event is one inbound message from the recognition service.
type Event struct {
	// Code is the service status. Zero means success; anything else is
	// fatal to the session.
	Code int `json:"code"`

	// Message describes the status in human-readable form.
	Message string `json:"message"`

	// VoiceID echoes the session identifier.
	VoiceID string `json:"voice_id"`

	// MessageID identifies this message within the session.
	MessageID string `json:"message_id"`

	// Final is 1 on the session's terminal event, 0 otherwise.
	Final int `json:"final"`

	// Result carries the transcript fragment, when present.
	Result *Result `json:"result,omitempty"`
}

// IsFinal reports whether this is the session's terminal event.
func (e *Event) IsFinal() bool {
	return e.Final == 1
}

// Result is a transcript fragment.
type Result struct {
	// SliceType is nil when the service attached no fragment
	// classification. Zero is a valid value (SliceSentenceBegin), so
	// absence is modeled as nil rather than the zero value.
	SliceType *int `json:"slice_type,omitempty"`

	// Index is the sentence number within the session, starting at 0.
	Index int `json:"index"`

	// StartTime and EndTime bound the fragment in milliseconds from the
	// start of the audio stream.
	StartTime int `json:"start_time"`
	EndTime   int `json:"end_time"`

	// VoiceTextStr is the recognized text of the fragment.
	VoiceTextStr string `json:"voice_text_str"`

	// WordSize is the number of entries in WordList.
	WordSize int `json:"word_size"`

	// WordList holds per-word timings when word-level info is enabled.
	WordList []Word `json:"word_list,omitempty"`
}

// Word is one recognized word with timing and stability information.
type Word struct {
	Word       string `json:"word"`
	StartTime  int    `json:"start_time"`
	EndTime    int    `json:"end_time"`
	StableFlag int    `json:"stable_flag"`
}

// EventKind is the classification of an inbound message, decided once at
// the deserialization boundary so dispatch is a total switch over a closed
// set.
type EventKind int

const (
	// EventMalformed marks a payload that did not parse or carried an
	// unknown slice type.
	EventMalformed EventKind = iota
	// EventServerFailure marks a well-formed event with a non-zero status
	// code. Fatal to the session.
	EventServerFailure
	// EventStarted is the service acknowledging the session before any
	// transcript fragment.
	EventStarted
	// EventSentenceBegin opens a sentence.
	EventSentenceBegin
	// EventInterim revises the in-progress sentence.
	EventInterim
	// EventSentenceEnd closes the current sentence with stable text.
	EventSentenceEnd
	// EventCompleted is a terminal event carrying no fragment
	// classification. It releases completion without a classification
	// callback.
	EventCompleted
)

// String returns a machine-readable kind name.
func (k EventKind) String() string {
	switch k {
	case EventServerFailure:
		return "server_failure"
	case EventStarted:
		return "started"
	case EventSentenceBegin:
		return "sentence_begin"
	case EventInterim:
		return "interim"
	case EventSentenceEnd:
		return "sentence_end"
	case EventCompleted:
		return "completed"
	default:
		return "malformed"
	}
}

// classifyEvent parses one inbound frame and decides its variant. The event
// is nil only when the payload does not parse at all.
func classifyEvent(data []byte) (EventKind, *Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return EventMalformed, nil, err
	}
	if ev.Code != 0 {
		return EventServerFailure, &ev, nil
	}
	if ev.Result == nil || ev.Result.SliceType == nil {
		if ev.IsFinal() {
			return EventCompleted, &ev, nil
		}
		return EventStarted, &ev, nil
	}
	switch *ev.Result.SliceType {
	case SliceSentenceBegin:
		return EventSentenceBegin, &ev, nil
	case SliceInterim:
		return EventInterim, &ev, nil
	case SliceSentenceEnd:
		return EventSentenceEnd, &ev, nil
	}
	return EventMalformed, &ev, fmt.Errorf("unknown slice_type %d", *ev.Result.SliceType)
}
