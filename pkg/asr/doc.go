// Package asr implements streaming speech recognition over a single
// authenticated WebSocket session, plus a one-shot flash recognizer for
// short utterances.
//
// A Session multiplexes outbound binary audio frames with inbound
// transcription events on one long-lived connection. The caller drives the
// write side; a dedicated read goroutine classifies every inbound message
// into a closed set of variants and dispatches it to a Listener in receive
// order.
//
// # Session Lifecycle
//
// A session moves through five states and is single-use:
//
//	IDLE → STARTING → RUNNING → STOPPING → STOPPED
//
// Start is valid only from IDLE, Write and Stop only from RUNNING. Stop
// sends an end-of-stream control frame and waits for the service to finish
// the transcript, bounded by a ceiling, so it never blocks indefinitely.
// Completion is signaled exactly once, whichever comes first: the terminal
// event, a fatal server status, transport loss, or the stop ceiling.
//
// # Authentication
//
// Connection parameters are serialized as a sparse, lexicographically
// sorted query string; the credential's token is appended as the signature
// field and carried redundantly in headers. Tokens derive once per
// credential and are reused by every session sharing it; see tcauth.
//
// # Usage
//
//	cred := tcauth.NewCredential(1300403317, 2017, os.Getenv("ASR_SECRET_KEY"))
//	sess, err := asr.NewSession(cred, "16k_zh", listener,
//	    asr.WithHotwordID("hw-08"),
//	    asr.WithWriteTimeout(5*time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := sess.Start(ctx); err != nil {
//	    return err
//	}
//	for chunk := range audioChunks {
//	    if err := sess.Write(chunk); err != nil {
//	        break
//	    }
//	}
//	if err := sess.Stop(); err != nil {
//	    log.Printf("stop: %v", err)
//	}
//	<-sess.Done()
//
// The listener receives OnSentenceBegin, OnRecognitionResultChange and
// OnSentenceEnd as the service revises each sentence, OnRecognitionComplete
// once at the end, and OnFail on any failure.
//
// For short clips that fit in memory, FlashRecognizer trades the streaming
// session for one HTTP round trip with the same credential and parameter
// encoding.
package asr
