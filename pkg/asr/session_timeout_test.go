package asr

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestSession_StopCeiling(t *testing.T) {
	t.Parallel()

	wsURL, closeServer := newASRTestServer(t, func(r *http.Request, conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteJSON(map[string]any{
			"code": 0, "message": "success", "voice_id": "v", "message_id": "m0", "final": 0,
		})
		// Swallow everything, including the end-of-stream frame, and
		// never send the terminal event.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer closeServer()

	listener := &recordingListener{}
	sess, err := NewSession(testCredential(), "16k_zh", listener,
		WithEndpoint(wsURL),
		WithStopTimeout(300*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	started := time.Now()
	err = sess.Stop()
	elapsed := time.Since(started)

	if !IsKind(err, ErrTimeout) {
		t.Errorf("Stop() = %v, want %v", err, ErrTimeout)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Stop() blocked for %v, want bounded by the stop ceiling", elapsed)
	}
	if got := sess.State(); got != StateStopped {
		t.Errorf("State() = %v, want %v", got, StateStopped)
	}
	waitDone(t, sess)

	// The closure caused by our own teardown is not a failure.
	time.Sleep(50 * time.Millisecond)
	if n := listener.count("fail"); n != 0 {
		t.Errorf("fail callbacks = %d, want 0", n)
	}
}

func TestSession_HandshakeTimeout(t *testing.T) {
	t.Parallel()

	// A listener that accepts and then says nothing forces the handshake
	// to run out its deadline.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	sess, err := NewSession(testCredential(), "16k_zh", &recordingListener{},
		WithEndpoint("ws://"+ln.Addr().String()),
		WithHandshakeTimeout(200*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	started := time.Now()
	err = sess.Start(context.Background())
	elapsed := time.Since(started)

	if !IsKind(err, ErrConnectFailed) {
		t.Fatalf("Start() = %v, want %v", err, ErrConnectFailed)
	}
	if elapsed > 3*time.Second {
		t.Errorf("Start() blocked for %v, want bounded by the handshake timeout", elapsed)
	}
	if got := sess.State(); got != StateIdle {
		t.Errorf("State() = %v, want %v", got, StateIdle)
	}
}

func TestSession_WriteTimeout(t *testing.T) {
	release := make(chan struct{})
	wsURL, closeServer := newASRTestServer(t, func(r *http.Request, conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteJSON(map[string]any{
			"code": 0, "message": "success", "voice_id": "v", "message_id": "m0", "final": 0,
		})
		// Stop reading so the peer's socket buffers fill up.
		<-release
	})
	defer closeServer()
	defer close(release)

	sess, err := NewSession(testCredential(), "16k_zh", &recordingListener{},
		WithEndpoint(wsURL),
		WithWriteTimeout(100*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	chunk := make([]byte, 128*1024)
	var writeErr error
	for i := 0; i < 400; i++ {
		if writeErr = sess.Write(chunk); writeErr != nil {
			break
		}
	}
	if writeErr == nil {
		t.Fatal("Write() never timed out against a stalled reader")
	}
	if !IsKind(writeErr, ErrWriteFailed) {
		t.Errorf("Write() = %v, want %v", writeErr, ErrWriteFailed)
	}
	if !IsTimeout(writeErr) {
		t.Errorf("Write() = %v, want a timeout", writeErr)
	}
	if got := sess.State(); got != StateRunning {
		t.Errorf("State() after write failure = %v, want %v", got, StateRunning)
	}
}
