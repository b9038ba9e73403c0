package edge

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"
)

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()
	return port
}

// startCallbackServer launches a callback server on a free port and arranges
// its shutdown at test end.
func startCallbackServer(t *testing.T, session *SessionState) *CallbackServer {
	t.Helper()
	server := NewCallbackServer(session, freePort(t))
	if err := server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	return server
}

func callbackGet(t *testing.T, server *CallbackServer, query url.Values) *http.Response {
	t.Helper()
	callbackURL := fmt.Sprintf("http://127.0.0.1:%d%s?%s", server.port, CallbackPath, query.Encode())
	resp, err := http.Get(callbackURL)
	if err != nil {
		t.Fatalf("http.Get(%q) error = %v", callbackURL, err)
	}
	_ = resp.Body.Close()
	return resp
}

func TestCallbackServerResolvesOnValidCallback(t *testing.T) {
	t.Parallel()

	session, state := pendingSession(t)
	server := startCallbackServer(t, session)

	resp := callbackGet(t, server, url.Values{"code": {"abc123"}, "state": {state}})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if err := server.WaitForCallback(5 * time.Second); err != nil {
		t.Fatalf("WaitForCallback() error = %v", err)
	}
	if code, _, err := session.pendingExchange(); err != nil || code != "abc123" {
		t.Errorf("stored code = %q, err = %v, want abc123", code, err)
	}
}

func TestCallbackServerIgnoresPrefetchWithoutCode(t *testing.T) {
	t.Parallel()

	session, state := pendingSession(t)
	server := startCallbackServer(t, session)

	// A code-less request, as browsers send when prefetching, must not
	// resolve or disturb the pending attempt.
	resp := callbackGet(t, server, url.Values{})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("prefetch status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if session.CSRFState() != state {
		t.Fatal("prefetch mutated the pending attempt")
	}

	// The real callback still succeeds afterwards.
	callbackGet(t, server, url.Values{"code": {"abc123"}, "state": {state}})
	if err := server.WaitForCallback(5 * time.Second); err != nil {
		t.Fatalf("WaitForCallback() error = %v", err)
	}
}

func TestCallbackServerConflictingCodeGets409(t *testing.T) {
	t.Parallel()

	session, state := pendingSession(t)
	server := startCallbackServer(t, session)

	callbackGet(t, server, url.Values{"code": {"abc123"}, "state": {state}})
	resp := callbackGet(t, server, url.Values{"code": {"other456"}, "state": {state}})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("conflicting code status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	if err := server.WaitForCallback(5 * time.Second); err != nil {
		t.Fatalf("WaitForCallback() error = %v, first code must win", err)
	}
	if code, _, _ := session.pendingExchange(); code != "abc123" {
		t.Errorf("stored code = %q, want abc123", code)
	}
}

func TestCallbackServerResolvesProviderError(t *testing.T) {
	t.Parallel()

	session, state := pendingSession(t)
	server := startCallbackServer(t, session)

	resp := callbackGet(t, server, url.Values{"error": {"access_denied"}, "state": {state}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	err := server.WaitForCallback(5 * time.Second)
	if !HasCode(err, ErrorAccessDenied) {
		t.Fatalf("WaitForCallback() error = %v, want AccessDenied", err)
	}
}

func TestCallbackServerStateMismatchResolvesError(t *testing.T) {
	t.Parallel()

	session, _ := pendingSession(t)
	server := startCallbackServer(t, session)

	resp := callbackGet(t, server, url.Values{"code": {"abc123"}, "state": {"forged"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	err := server.WaitForCallback(5 * time.Second)
	if !HasCode(err, ErrorInvalidReturnedState) {
		t.Fatalf("WaitForCallback() error = %v, want InvalidReturnedState", err)
	}
}

func TestWaitForCallbackTimeoutClearsAttempt(t *testing.T) {
	t.Parallel()

	session, _ := pendingSession(t)
	server := startCallbackServer(t, session)

	err := server.WaitForCallback(50 * time.Millisecond)
	if !IsAuthErrorType(err, ErrCallbackTimeout) {
		t.Fatalf("WaitForCallback() error = %v, want callback_timeout", err)
	}
	if session.CSRFState() != "" {
		t.Error("timeout must clear the pending attempt")
	}
}

func TestStartRejectsOccupiedPort(t *testing.T) {
	t.Parallel()

	port := freePort(t)
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		t.Skipf("cannot occupy port %d: %v", port, err)
	}
	defer func() {
		_ = listener.Close()
	}()

	server := NewCallbackServer(NewSessionState(), port)
	err = server.Start()
	if !IsAuthErrorType(err, ErrPortInUse) {
		t.Fatalf("Start() error = %v, want port_in_use", err)
	}
}
