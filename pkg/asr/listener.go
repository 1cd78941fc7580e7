package asr

// Listener receives classified recognition events. Exactly one callback
// fires per inbound event, with OnRecognitionComplete firing additionally
// alongside terminal events.
//
// Callbacks run on the session's read goroutine, in transport receive
// order. Blocking in a callback delays every subsequent event, so hand off
// to another goroutine for slow work, and do not call Stop from inside a
// callback.
type Listener interface {
	// OnRecognitionStart fires when the service acknowledges the session,
	// before any transcript fragment.
	OnRecognitionStart(ev *Event)

	// OnSentenceBegin fires when a new sentence opens.
	OnSentenceBegin(ev *Event)

	// OnRecognitionResultChange fires for each interim revision of the
	// in-progress sentence.
	OnRecognitionResultChange(ev *Event)

	// OnSentenceEnd fires when the current sentence closes with stable
	// text.
	OnSentenceEnd(ev *Event)

	// OnRecognitionComplete fires at most once, on the session's terminal
	// event.
	OnRecognitionComplete(ev *Event)

	// OnFail fires when the session fails. ev carries the offending
	// service event when one exists and is nil for transport-level
	// failures.
	OnFail(ev *Event, err error)
}
