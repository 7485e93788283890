package ftp

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/kuba23c/ftp-server/internal/logger"
	wire "github.com/kuba23c/ftp-server/internal/protocol/ftp"
	"github.com/kuba23c/ftp-server/pkg/blockfs"
	"github.com/kuba23c/ftp-server/pkg/ftppath"
)

// userState tracks the login progress of one session.
type userState int

const (
	userAnonymous userState = iota
	userAwaitingPassword
	userLoggedIn
)

// session is the per-connection state of one FTP client. Every field is
// exclusively owned by the slot's worker; the supervisor touches only the
// slot's stop and busy flags.
type session struct {
	srv  *Server
	slot *slot
	conn net.Conn
	log  *slog.Logger

	dc dataChannel

	serverIP netip.Addr
	clientIP netip.Addr

	user     userState
	username string // snapshot taken at USER time
	password string

	cwd        string
	renameFrom string

	verb string
	args string

	// buf is the transfer buffer: start aligned to bufpool.Alignment (32
	// bytes), len a multiple of 1024.
	// Reused for every reply and every payload chunk of the session.
	buf []byte

	// recvBuf receives one TCP segment at a time during STOR.
	recvBuf [tcpMSS]byte

	// readBuf holds one raw control-channel read.
	readBuf [maxParam + 16]byte
	rawLen  int
}

// newSession initializes a session for a freshly assigned control socket.
func newSession(srv *Server, sl *slot, conn net.Conn) *session {
	s := &session{
		srv:  srv,
		slot: sl,
		conn: conn,
		cwd:  "/",
		buf:  sl.buf,
	}
	s.dc = dataChannel{srv: srv}

	if addr, ok := conn.LocalAddr().(*net.TCPAddr); ok {
		if ip, ok := netip.AddrFromSlice(addr.IP); ok {
			s.serverIP = ip.Unmap()
		}
	}
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		if ip, ok := netip.AddrFromSlice(addr.IP); ok {
			s.clientIP = ip.Unmap()
		}
	}

	s.log = logger.With(logger.KeySlot, sl.index, logger.KeyClientIP, s.clientIP.String())
	return s
}

// serve runs the control loop: read, parse, dispatch, reply, until quit,
// timeout or error. Teardown closes the passive listener, the data socket and
// the control connection.
func (s *session) serve() {
	defer s.teardown()

	if s.sendf("220 -> CMS FTP Server, FTP Version %s\r\n", Version) != ResultOK {
		return
	}

	s.log.Info("client connected")

	for {
		if r := s.readCommand(); r != ResultOK {
			if r == ResultTimeout {
				s.log.Info("client idle, disconnecting")
			}
			return
		}

		var err error
		s.verb, s.args, err = wire.ParseCommand(s.readBuf[:s.rawLen], maxParam)
		if err != nil {
			// Oversize argument: drop the session without a reply.
			s.log.Warn("unparseable command", logger.KeyError, err.Error())
			return
		}

		result, quit := s.dispatch()
		if quit {
			s.sendf("221 Goodbye\r\n")
			return
		}
		if result != ResultOK {
			return
		}
	}
}

func (s *session) teardown() {
	s.dc.pasvClose()
	s.dc.close()
	if err := s.conn.Close(); err != nil {
		s.srv.setError(ErrFlagClientDelete)
	}
	s.log.Info("client disconnected")
}

// readCommand polls the control socket one lap per ReadTimeout, up to
// InactiveCount laps. Each idle lap re-checks the supervisor stop flag, the
// server error state and the link predicate; any of them aborts the session.
func (s *session) readCommand() Result {
	for i := 0; i < s.srv.cfg.InactiveCount; i++ {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.srv.cfg.ReadTimeout)); err != nil {
			return ResultError
		}
		n, err := s.conn.Read(s.readBuf[:])
		if err == nil {
			s.rawLen = n
			return ResultOK
		}
		if isTimeout(err) {
			if s.slot.stop.Load() {
				s.log.Debug("stop flag set, aborting session")
				return ResultError
			}
			if s.srv.failed() {
				return ResultError
			}
			if !s.srv.hooks.linkUp() {
				s.log.Warn("link down, aborting session")
				return ResultError
			}
			continue
		}
		if !errors.Is(err, io.EOF) {
			s.log.Debug("control read failed", logger.KeyError, err.Error())
		}
		return ResultError
	}
	return ResultTimeout
}

// sendf formats one reply into the transfer buffer and writes it to the
// control socket, bounded by the write timeout.
func (s *session) sendf(format string, args ...any) Result {
	line := fmt.Appendf(s.buf[:0], format, args...)
	return s.writeControl(line)
}

func (s *session) writeControl(line []byte) Result {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.srv.cfg.WriteTimeout)); err != nil {
		return ResultError
	}
	if _, err := s.conn.Write(line); err != nil {
		if isTimeout(err) {
			return ResultTimeout
		}
		s.srv.setError(ErrFlagClientWrite)
		s.log.Debug("control write failed", logger.KeyError, err.Error())
		return ResultError
	}
	return ResultOK
}

// writeData writes one chunk to the data socket, bounded by the write
// timeout.
func (s *session) writeData(chunk []byte) error {
	if err := s.dc.conn.SetWriteDeadline(time.Now().Add(s.srv.cfg.WriteTimeout)); err != nil {
		return err
	}
	_, err := s.dc.conn.Write(chunk)
	return err
}

// loggedIn reports whether the session passed the USER/PASS gate.
func (s *session) loggedIn() bool {
	return s.user == userLoggedIn
}

// buildPath applies one command argument to the working directory, in place.
func (s *session) buildPath(arg string) bool {
	out, ok := ftppath.Build(s.cwd, arg, maxParam)
	if ok {
		s.cwd = out
	}
	return ok
}

// upOne strips the trailing path segment from the working directory,
// restoring it after a file command consumed the argument.
func (s *session) upOne() {
	s.cwd = ftppath.UpOne(s.cwd)
}

// statPath is a stat shortcut that maps backend errors onto the not-found
// result the reply table cares about.
func (s *session) statPath(p string) (blockfs.FileInfo, bool) {
	info, err := s.srv.fs.Stat(p)
	if err != nil {
		return blockfs.FileInfo{}, false
	}
	return info, true
}

func isTimeout(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}
