package ftp

import (
	"errors"
	"io"
	"time"

	"github.com/kuba23c/ftp-server/internal/logger"
	"github.com/kuba23c/ftp-server/pkg/blockfs"
)

// Streaming transfers. RETR pushes the file through the transfer buffer in
// MSS-sized chunks; STOR accumulates received segments into the buffer and
// flushes it to the filesystem only when full, so every write except the
// final flush is a whole buffer — a multiple of the sector size. The exception
// is a segment at least as large as the buffer: the partial accumulation is
// flushed and the segment is written straight through.

func (s *session) cmdRetr() Result {
	if s.args == "" {
		return s.sendf("501 No file name\r\n")
	}
	if !s.buildPath(s.args) {
		return s.sendf("500 Command line too long\r\n")
	}
	info, ok := s.statPath(s.cwd)
	if !ok {
		s.upOne()
		return s.sendf("550 File %s not found\r\n", s.args)
	}
	f, err := s.srv.fs.Open(s.cwd, blockfs.OpenRead)
	if err != nil {
		s.upOne()
		return s.sendf("450 Can't open %s\r\n", s.args)
	}
	if err := s.dc.open(); err != nil {
		s.upOne()
		_ = f.Close()
		s.log.Debug("data open failed", "error", err.Error())
		return s.sendf("425 Can't create connection\r\n")
	}

	s.log.Debug("sending file", logger.KeyPath, s.cwd)
	if r := s.sendf("150 Connected to port %d, %d bytes to download\r\n", s.dc.port, info.Size); r != ResultOK {
		s.finishRetr(f, false, 0)
		return r
	}

	chunk := tcpMSS
	if chunk > len(s.buf) {
		chunk = len(s.buf)
	}

	var sent int64
	failed := false
	for {
		n, err := f.Read(s.buf[:chunk])
		if n > 0 {
			if werr := s.writeData(s.buf[:n]); werr != nil {
				s.sendf("426 Error during file transfer\r\n")
				failed = true
				break
			}
			sent += int64(n)
		}
		if err == io.EOF || (err == nil && n == 0) {
			break
		}
		if err != nil {
			s.sendf("451 Communication error during transfer\r\n")
			failed = true
			break
		}
	}

	s.log.Info("file sent", logger.KeyPath, s.cwd, logger.KeyBytes, sent)
	return s.finishRetr(f, !failed, sent)
}

// finishRetr releases the file and data socket, restores the working
// directory and sends the terminal reply on the success path.
func (s *session) finishRetr(f blockfs.File, ok bool, sent int64) Result {
	_ = f.Close()
	s.upOne()
	s.dc.close()

	if s.srv.metrics != nil {
		s.srv.metrics.RecordFileSent(ok, sent)
	}
	if !ok {
		s.srv.stats.filesSentFail.Add(1)
		return ResultOK
	}
	s.srv.stats.filesSentOK.Add(1)
	return s.sendf("226 File successfully transferred\r\n")
}

func (s *session) cmdStor() Result {
	if s.args == "" {
		return s.sendf("501 No file name\r\n")
	}
	if !s.buildPath(s.args) {
		return s.sendf("500 Command line too long\r\n")
	}
	f, err := s.srv.fs.Open(s.cwd, blockfs.OpenCreateWrite)
	if err != nil {
		s.upOne()
		return s.sendf("450 Can't open/create %s\r\n", s.args)
	}
	if err := s.dc.open(); err != nil {
		s.upOne()
		_ = f.Close()
		s.log.Debug("data open failed", "error", err.Error())
		return s.sendf("425 Can't create connection\r\n")
	}

	s.log.Debug("receiving file", logger.KeyPath, s.cwd)
	if r := s.sendf("150 Connected to port %d\r\n", s.dc.port); r != ResultOK {
		s.finishStor(f, false, 0)
		return r
	}

	var (
		received int64
		fill     int // bytes accumulated in the transfer buffer
		fileErr  bool
		connErr  bool
	)

	flush := func(p []byte) bool {
		n, err := f.Write(p)
		if err != nil || n != len(p) {
			// Short writes are hard errors: persisted bytes must match
			// received bytes exactly.
			fileErr = true
			return false
		}
		return true
	}

recv:
	for {
		if err := s.dc.conn.SetReadDeadline(time.Now().Add(s.srv.cfg.StorReceiveTimeout)); err != nil {
			connErr = true
			break
		}
		n, err := s.dc.conn.Read(s.recvBuf[:])
		if n > 0 {
			received += int64(n)
			segment := s.recvBuf[:n]

			switch {
			case len(segment) >= len(s.buf):
				// Oversize segment: flush the partial accumulation, then
				// write the segment straight through.
				if fill > 0 {
					if !flush(s.buf[:fill]) {
						break recv
					}
					fill = 0
				}
				if !flush(segment) {
					break recv
				}

			case fill+len(segment) < len(s.buf):
				fill += copy(s.buf[fill:], segment)

			default:
				// Fills the buffer: top it up, write the whole buffer,
				// start a fresh accumulation with the remainder.
				taken := copy(s.buf[fill:], segment)
				if !flush(s.buf) {
					break recv
				}
				fill = copy(s.buf, segment[taken:])
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break // peer closed: end of stream
			}
			s.sendf("426 Error during file transfer\r\n")
			connErr = true
			break
		}
	}

	// Flush the final partial buffer once the stream ended cleanly.
	if !fileErr && !connErr && fill > 0 {
		flush(s.buf[:fill])
	}
	if fileErr {
		s.sendf("451 Communication error during transfer\r\n")
	}

	failed := fileErr || connErr
	s.log.Info("file received", logger.KeyPath, s.cwd, logger.KeyBytes, received)
	return s.finishStor(f, !failed, received)
}

// finishStor mirrors finishRetr for the upload path.
func (s *session) finishStor(f blockfs.File, ok bool, received int64) Result {
	_ = f.Close()
	s.upOne()
	s.dc.close()

	if s.srv.metrics != nil {
		s.srv.metrics.RecordFileReceived(ok, received)
	}
	if !ok {
		s.srv.stats.filesReceivedFail.Add(1)
		return ResultOK
	}
	s.srv.stats.filesReceivedOK.Add(1)
	return s.sendf("226 File successfully transferred\r\n")
}
