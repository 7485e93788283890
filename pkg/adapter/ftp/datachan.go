package ftp

import (
	"fmt"
	"net"
	"net/netip"
	"time"
)

// dataMode selects how the data channel is established.
type dataMode int

const (
	modeUnset dataMode = iota
	modePassive
	modeActive
)

func (m dataMode) String() string {
	switch m {
	case modePassive:
		return "passive"
	case modeActive:
		return "active"
	default:
		return "not set"
	}
}

// dataChannel owns the data-connection state of one session: the passive
// listener, the per-transfer data socket, the negotiated mode and port.
//
// The listener survives across transfers within a session; the data socket
// lives for exactly one transfer. Both are torn down at session end.
type dataChannel struct {
	srv *Server

	listener *net.TCPListener
	conn     net.Conn

	mode     dataMode
	port     uint16
	clientIP netip.Addr
}

// pasvOpen creates the passive-mode listener on the session's data port.
// Idempotent: an existing listener is kept (and the earlier port stays
// advertised). Failures flag the server error bitmap, which drives the
// supervisor into ErrorStopping.
func (d *dataChannel) pasvOpen() error {
	if d.listener != nil {
		return nil
	}

	addr := &net.TCPAddr{Port: int(d.port)}
	ln, err := net.ListenTCP("tcp4", addr)
	if err != nil {
		d.srv.setError(ErrFlagDataListenerBind)
		return fmt.Errorf("data listener on port %d: %w", d.port, err)
	}

	// A fresh listener idles with the long listen timeout until a transfer
	// command lowers it to the accept timeout.
	if err := ln.SetDeadline(time.Now().Add(d.srv.cfg.Passive.ListenTimeout)); err != nil {
		_ = ln.Close()
		d.srv.setError(ErrFlagDataListenerListen)
		return fmt.Errorf("data listener deadline: %w", err)
	}

	d.listener = ln
	return nil
}

// pasvClose destroys the passive listener and resets the mode.
func (d *dataChannel) pasvClose() {
	d.mode = modeUnset

	if d.listener == nil {
		return
	}
	if err := d.listener.Close(); err != nil {
		d.srv.setError(ErrFlagDataListenerClose)
	}
	d.listener = nil
}

// open produces the per-transfer data socket: an accepted connection in
// passive mode, an outbound dial to the client's advertised address in active
// mode. Fails when no mode has been negotiated.
func (d *dataChannel) open() error {
	switch d.mode {
	case modePassive:
		// The listener must already exist; PASV created it.
		if d.listener == nil {
			return fmt.Errorf("passive mode without listener")
		}
		if err := d.listener.SetDeadline(time.Now().Add(d.srv.cfg.Passive.AcceptTimeout)); err != nil {
			return fmt.Errorf("data accept deadline: %w", err)
		}
		conn, err := d.listener.AcceptTCP()
		if err != nil {
			return fmt.Errorf("data accept: %w", err)
		}
		d.conn = conn
		return nil

	case modeActive:
		dialer := net.Dialer{
			Timeout:   d.srv.cfg.WriteTimeout,
			LocalAddr: &net.TCPAddr{}, // ephemeral local port
		}
		conn, err := dialer.Dial("tcp4", net.JoinHostPort(d.clientIP.String(), fmt.Sprint(d.port)))
		if err != nil {
			return fmt.Errorf("data connect to %s:%d: %w", d.clientIP, d.port, err)
		}
		d.conn = conn
		return nil

	default:
		return fmt.Errorf("no data connection mode negotiated")
	}
}

// close releases the per-transfer data socket and resets the mode.
func (d *dataChannel) close() {
	d.mode = modeUnset

	if d.conn == nil {
		return
	}
	if err := d.conn.Close(); err != nil {
		d.srv.setError(ErrFlagDataSocketClose)
	}
	d.conn = nil
}
