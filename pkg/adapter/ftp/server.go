// Package ftp implements the FTP protocol adapter: a fixed pool of session
// workers behind a supervising accept loop, speaking RFC 959 with the RFC
// 3659 extensions MDTM, MLSD and SIZE against a pluggable blockfs backend.
//
// Lifecycle is an explicit state machine (see ServerStatus): Start brings the
// supervisor from Idle through Starting to Running; Stop drains the worker
// pool through Stopping back to Idle. Internal failures route through
// ErrorStopping into Error, where the bitmap of error kinds stays readable
// until ClearErrors.
package ftp

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/kuba23c/ftp-server/internal/logger"
	"github.com/kuba23c/ftp-server/pkg/blockfs"
	"github.com/kuba23c/ftp-server/pkg/bufpool"
	"github.com/kuba23c/ftp-server/pkg/metrics"
)

// slot is one position in the worker pool. The supervisor publishes a
// pending control socket into an empty slot; the slot's worker consumes it,
// serves the session and releases the slot by clearing busy.
type slot struct {
	index int

	// pending carries the accepted control socket from the supervisor to
	// the parked worker. Capacity 1: the supervisor never publishes into a
	// slot that has not drained its previous socket.
	pending chan net.Conn

	// stop is the supervisor-to-worker cancellation signal, checked at the
	// top of every control-read lap.
	stop atomic.Bool

	// busy is the worker-to-supervisor occupancy signal.
	busy atomic.Bool

	// portOffset rotates through the slot's passive-port window between
	// sessions, sidestepping TIME_WAIT on the previous port.
	portOffset uint8

	// buf is the slot's transfer buffer, held for the server's lifetime.
	buf []byte
}

// dataPort computes the passive data port for the slot's current session.
func (sl *slot) dataPort(base int) uint16 {
	return uint16(base) + uint16(sl.portOffset) + uint16(sl.index)*portIncrementOffset
}

// Server is the FTP server singleton: supervisor state, worker pool and the
// collaborators every session shares.
//
// Construct with New, then Start/Stop. A Server that entered the Error state
// can be restarted with Start after inspecting ErrorFlags and calling
// ClearErrors.
type Server struct {
	cfg     Config
	fs      blockfs.Filesystem
	creds   *Credentials
	hooks   Hooks
	metrics metrics.FTPMetrics

	status   atomic.Int32
	errFlags atomic.Uint32
	stats    Stats

	pool *bufpool.Pool

	mu       sync.Mutex // guards Start/Stop transitions and the fields below
	listener *net.TCPListener
	slots    []*slot
	quit     chan struct{} // unparks idle workers at shutdown
	done     chan struct{} // closed when the supervisor goroutine exits
	stopErr  error
}

// Option customizes a Server at construction time.
type Option func(*Server)

// WithHooks installs host observability callbacks.
func WithHooks(h Hooks) Option {
	return func(s *Server) { s.hooks = h }
}

// WithMetrics installs a metrics recorder. A nil recorder disables
// collection.
func WithMetrics(m metrics.FTPMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithCredentials replaces the default credential pair.
func WithCredentials(c *Credentials) Option {
	return func(s *Server) {
		if c != nil {
			s.creds = c
		}
	}
}

// New creates a stopped FTP server over the given filesystem.
//
// Zero config values are replaced with defaults; an invalid configuration
// panics, as it indicates programmer error rather than runtime conditions.
func New(cfg Config, fs blockfs.Filesystem, opts ...Option) *Server {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("invalid FTP config: %v", err))
	}

	s := &Server{
		cfg:   cfg,
		fs:    fs,
		creds: NewCredentials("user", "pass"),
		pool:  bufpool.NewPool(cfg.TransferBuffer),
	}
	s.status.Store(int32(StatusIdle))

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns the current lifecycle state.
func (s *Server) Status() ServerStatus {
	return ServerStatus(s.status.Load())
}

// ErrorFlags returns the current error bitmap.
func (s *Server) ErrorFlags() uint32 {
	return s.errFlags.Load()
}

// Stats returns a snapshot of the server counters.
func (s *Server) Stats() StatsSnapshot {
	return s.stats.snapshot(s.cfg.MaxClients)
}

// Credentials exposes the credential pair for host setters.
func (s *Server) Credentials() *Credentials {
	return s.creds
}

// Addr returns the control listener address, or nil when not running.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ClearErrors zeroes the error bitmap. Only legal while the server sits in
// the Error state; anywhere else the bitmap is in use and the call is
// ignored.
func (s *Server) ClearErrors() {
	if s.Status() == StatusError {
		s.errFlags.Store(0)
	}
}

// setError records one error kind and, when the server is live, routes the
// supervisor onto the ErrorStopping drain path.
func (s *Server) setError(flag ErrorFlag) {
	s.errFlags.Or(uint32(flag))
	cur := ServerStatus(s.status.Load())
	if cur == StatusRunning || cur == StatusStarting {
		s.status.Store(int32(StatusErrorStopping))
	}
}

// failed reports whether the server left its healthy states.
func (s *Server) failed() bool {
	switch s.Status() {
	case StatusErrorStopping, StatusError:
		return true
	default:
		return false
	}
}

// Start brings the server from Idle (or Error, after a failure was
// inspected) to Running: bind the control listener, park one worker per
// client slot and launch the supervisor accept loop.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Status()
	if cur != StatusIdle && cur != StatusError {
		return fmt.Errorf("ftp: cannot start from %s state", cur)
	}
	s.status.Store(int32(StatusStarting))

	if s.cfg.Port == 0 {
		s.setError(ErrFlagBindPortZero)
		s.status.Store(int32(StatusError))
		return fmt.Errorf("ftp: listen port is zero")
	}

	ln, err := net.ListenTCP("tcp4", &net.TCPAddr{Port: s.cfg.Port})
	if err != nil {
		s.setError(ErrFlagListenerBind)
		s.status.Store(int32(StatusError))
		return fmt.Errorf("ftp: listen on port %d: %w", s.cfg.Port, err)
	}
	s.listener = ln

	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	s.stopErr = nil
	s.slots = make([]*slot, s.cfg.MaxClients)
	for i := range s.slots {
		s.slots[i] = &slot{
			index:   i,
			pending: make(chan net.Conn, 1),
			buf:     s.pool.Get(),
		}
		go s.worker(s.slots[i], s.quit)
	}

	s.status.Store(int32(StatusRunning))
	logger.Info("FTP server listening", "port", s.cfg.Port, "slots", s.cfg.MaxClients)

	go s.supervise()
	return nil
}

// Stop drains the server from Running to Idle: the listener goes away, busy
// workers get their stop flag, and the supervisor waits up to the drain
// timeout for the pool to empty. Workers that refuse to die leave the server
// in Error with the NotAllTasksDisabled flag set.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.Status() != StatusRunning {
		s.mu.Unlock()
		return fmt.Errorf("ftp: cannot stop from %s state", s.Status())
	}
	s.status.Store(int32(StatusStopping))
	done := s.done
	s.mu.Unlock()

	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopErr
}

// supervise is the accept loop. It runs while the server is Running and
// performs the drain when the state leaves Running.
func (s *Server) supervise() {
	defer close(s.done)

	for s.Status() == StatusRunning {
		_ = s.listener.SetDeadline(time.Now().Add(s.cfg.Passive.AcceptTimeout))
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			// Listener failure outside shutdown is an internal error.
			if s.Status() == StatusRunning {
				logger.Warn("accept failed", logger.KeyError, err.Error())
				s.setError(ErrFlagListenerListen)
			}
			continue
		}

		_ = conn.SetNoDelay(true)
		s.assign(conn)
	}

	// Drain phase: Stopping ends in Idle, ErrorStopping in Error. A failed
	// drain forces Error either way.
	wasError := s.Status() == StatusErrorStopping
	drainErr := s.drain()

	if wasError || drainErr != nil {
		s.status.Store(int32(StatusError))
	} else {
		s.status.Store(int32(StatusIdle))
	}

	s.mu.Lock()
	s.stopErr = drainErr
	s.mu.Unlock()

	logger.Info("FTP server stopped", "status", s.Status().String())
}

// assign publishes an accepted control socket into the first free slot, or
// turns the client away with a 421 when the pool is full.
func (s *Server) assign(conn *net.TCPConn) {
	for _, sl := range s.slots {
		if sl.busy.Load() || len(sl.pending) != 0 {
			continue
		}
		sl.pending <- conn
		return
	}

	logger.Warn("connection denied, all slots in use", logger.KeyClientIP, conn.RemoteAddr().String())
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if _, err := conn.Write([]byte("421 No more connections allowed\r\n")); err != nil {
		s.setError(ErrFlagClientWrite)
	}
	if err := conn.Close(); err != nil {
		s.setError(ErrFlagClientDelete)
	}
	time.Sleep(slotRetryDelay)
}

// drain closes the listener, signals every busy worker and waits up to
// drainTimeout for the pool to empty.
func (s *Server) drain() error {
	var errs *multierror.Error

	if err := s.listener.Close(); err != nil {
		s.errFlags.Or(uint32(ErrFlagListenerDelete))
		errs = multierror.Append(errs, fmt.Errorf("closing listener: %w", err))
	}

	for _, sl := range s.slots {
		if sl.busy.Load() {
			sl.stop.Store(true)
		}
	}
	close(s.quit)

	deadline := time.Now().Add(drainTimeout)
	for time.Now().Before(deadline) {
		if s.allIdle() {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	if !s.allIdle() {
		s.errFlags.Or(uint32(ErrFlagNotAllTasksDisabled))
		errs = multierror.Append(errs, fmt.Errorf("workers still busy after %s drain", drainTimeout))
	} else {
		// No session can touch a slot buffer anymore; reclaim them.
		for _, sl := range s.slots {
			s.pool.Put(sl.buf)
		}
	}

	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()

	return errs.ErrorOrNil()
}

func (s *Server) allIdle() bool {
	for _, sl := range s.slots {
		if sl.busy.Load() {
			return false
		}
	}
	return true
}

// worker is the body of one pool slot: parked on the pending channel, it
// serves one session at a time until the server shuts down. quit belongs to
// the worker's own generation, so a restarted server never confuses the
// leftover workers of the previous run.
func (s *Server) worker(sl *slot, quit <-chan struct{}) {
	for {
		select {
		case conn := <-sl.pending:
			sl.busy.Store(true)
			s.runSession(sl, conn)
			sl.stop.Store(false)
			sl.busy.Store(false)

		case <-quit:
			// Drain any socket published concurrently with shutdown.
			select {
			case conn := <-sl.pending:
				_ = conn.Close()
			default:
			}
			return
		}
	}
}

// runSession wraps one session with connection accounting and host hooks.
func (s *Server) runSession(sl *slot, conn net.Conn) {
	sl.portOffset = (sl.portOffset + 1) % portIncrementOffset

	s.hooks.connected()
	active := s.stats.clientsActive.Add(1)
	s.stats.clientsConnected.Add(1)
	if s.metrics != nil {
		s.metrics.RecordClientConnected()
		s.metrics.SetActiveClients(active)
	}

	logger.Infof("FTP %d connected", sl.index)

	sess := newSession(s, sl, conn)
	sess.serve()

	logger.Infof("FTP %d disconnected", sl.index)

	active = s.stats.clientsActive.Add(-1)
	s.stats.clientsDisconnected.Add(1)
	if s.metrics != nil {
		s.metrics.RecordClientDisconnected()
		s.metrics.SetActiveClients(active)
	}
	s.hooks.disconnected()
}
