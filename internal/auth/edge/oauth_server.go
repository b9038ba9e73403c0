package edge

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// CallbackServer is a short-lived local HTTP listener that captures the
// provider's redirect and resolves the pending authorization attempt. It
// tolerates concurrent and duplicate requests (browser prefetch is common)
// and only the first valid authorization code wins.
type CallbackServer struct {
	server  *http.Server
	port    int
	session *SessionState
	result  chan error
	errChan chan error
	mu      sync.Mutex
	running bool
	once    sync.Once
}

// NewCallbackServer constructs a callback listener bound to the provided
// port that feeds redirect parameters into the given session.
func NewCallbackServer(session *SessionState, port int) *CallbackServer {
	if port <= 0 {
		port = CallbackPort
	}
	return &CallbackServer{
		port:    port,
		session: session,
		result:  make(chan error, 1),
		errChan: make(chan error, 1),
	}
}

// Start launches the callback listener.
func (s *CallbackServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return NewAuthenticationError(ErrServerStartFailed, fmt.Errorf("callback server already running"))
	}
	if !s.isPortAvailable() {
		return NewAuthenticationError(ErrPortInUse, fmt.Errorf("port %d is already in use", s.port))
	}

	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, s.handleCallback)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.running = true

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.errChan <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)
	return nil
}

// Stop gracefully terminates the callback listener.
func (s *CallbackServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.server == nil {
		return nil
	}
	defer func() {
		s.running = false
		s.server = nil
	}()
	return s.server.Shutdown(ctx)
}

// WaitForCallback blocks until the first valid callback resolves the pending
// attempt, the listener fails, or the timeout elapses while the user
// finishes authenticating in the browser. On timeout the attempt is
// abandoned and the session's PKCE/state material is cleared so a retry
// starts clean.
func (s *CallbackServer) WaitForCallback(timeout time.Duration) error {
	select {
	case err := <-s.result:
		return err
	case err := <-s.errChan:
		return NewAuthenticationError(ErrServerStartFailed, err)
	case <-time.After(timeout):
		s.session.ClearAuthorizationAttempt()
		return NewAuthenticationError(ErrCallbackTimeout, nil)
	}
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	err := s.session.HandleCallback(r.URL.Query())
	switch {
	case err == nil:
		// First valid code, or a harmless duplicate delivery of it.
		s.resolve(nil)
		s.writePage(w, http.StatusOK, loginSuccessHTML)
	case HasCode(err, ErrorNoAuthCode):
		// Stray request without a code, typically browser prefetch.
		// Informational only; the attempt stays pending.
		log.Debugf("callback without authorization code from %s, ignoring", r.RemoteAddr)
		s.writePage(w, http.StatusOK, loginPendingHTML)
	case IsAuthErrorType(err, ErrCallbackConflict):
		log.Warn("callback carried a different authorization code after one was accepted, rejecting")
		s.writePage(w, http.StatusConflict, loginPendingHTML)
	default:
		if HasCode(err, ErrorInvalidReturnedState) {
			log.Errorf("callback state validation failed: %v", err)
		}
		s.resolve(err)
		s.writePage(w, http.StatusBadRequest, fmt.Sprintf(loginFailureHTML, GetUserFriendlyMessage(err)))
	}
}

// resolve delivers the attempt outcome exactly once; later deliveries drop.
func (s *CallbackServer) resolve(err error) {
	s.once.Do(func() {
		s.result <- err
	})
}

func (s *CallbackServer) writePage(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := fmt.Fprint(w, body); err != nil {
		log.Debugf("failed to write callback page: %v", err)
	}
}

func (s *CallbackServer) isPortAvailable() bool {
	addr := fmt.Sprintf(":%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	_ = listener.Close()
	return true
}
