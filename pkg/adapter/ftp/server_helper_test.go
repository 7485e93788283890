package ftp

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kuba23c/ftp-server/pkg/blockfs/memfs"
)

// freePort grabs an ephemeral port from the kernel and releases it for the
// server to rebind. Racy in principle, good enough for loopback tests.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

// testConfig returns a config tuned for fast tests: short read laps with a
// generous lap budget, two slots, and ephemeral ports.
func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Port:               freePort(t),
		DataPort:           freePort(t),
		MaxClients:         2,
		ReadTimeout:        100 * time.Millisecond,
		WriteTimeout:       3 * time.Second,
		InactiveCount:      100,
		StorReceiveTimeout: 2 * time.Second,
		Passive: PassiveConfig{
			AcceptTimeout: 2 * time.Second,
			ListenTimeout: 5 * time.Second,
		},
		TransferBuffer: 32 * 1024,
	}
}

// startServer builds a server over a fresh memfs and runs it until test end.
func startServer(t *testing.T, cfg Config, opts ...Option) (*Server, *memfs.FS) {
	t.Helper()
	fs := memfs.New(0)
	srv := New(cfg, fs, opts...)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		if srv.Status() == StatusRunning {
			_ = srv.Stop()
		}
	})
	return srv, fs
}

// control drives one raw control connection, reading replies line by line so
// tests can assert literal wire bytes.
type control struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

// dialControl connects to the server and consumes the welcome banner.
func dialControl(t *testing.T, srv *Server) *control {
	t.Helper()
	c := rawDial(t, srv)
	c.expect("220 -> CMS FTP Server, FTP Version 2020-08-20")
	return c
}

// rawDial connects without reading anything.
func rawDial(t *testing.T, srv *Server) *control {
	t.Helper()
	conn, err := net.DialTimeout("tcp4", serverAddr(t, srv), 3*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &control{t: t, conn: conn, r: bufio.NewReader(conn)}
}

// serverAddr rewrites the wildcard listen address to loopback.
func serverAddr(t *testing.T, srv *Server) string {
	t.Helper()
	addr, ok := srv.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return fmt.Sprintf("127.0.0.1:%d", addr.Port)
}

// line reads one CRLF-terminated reply line, without the terminator.
func (c *control) line() string {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err, "reading reply line")
	return strings.TrimRight(line, "\r\n")
}

// send writes one command line.
func (c *control) send(line string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\r\n"))
	require.NoError(c.t, err)
}

// cmd sends a command and returns the single reply line.
func (c *control) cmd(line string) string {
	c.t.Helper()
	c.send(line)
	return c.line()
}

// expect asserts the next reply line exactly.
func (c *control) expect(want string) {
	c.t.Helper()
	got := c.line()
	require.Equal(c.t, want, got)
}

// expectSilence asserts that nothing arrives within d.
func (c *control) expectSilence(d time.Duration) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(d)))
	buf := make([]byte, 1)
	_, err := c.conn.Read(buf)
	nerr, ok := err.(net.Error)
	require.True(c.t, ok && nerr.Timeout(), "expected silence, got err=%v", err)
}

// login performs the USER/PASS exchange with the default credentials.
func (c *control) login() {
	c.t.Helper()
	require.Equal(c.t, "331 OK. Password required", c.cmd("USER user"))
	require.Equal(c.t, "230 OK, logged in as user", c.cmd("PASS pass"))
}

// pasv negotiates passive mode and returns the advertised data port.
func (c *control) pasv() int {
	c.t.Helper()
	reply := c.cmd("PASV")
	require.True(c.t, strings.HasPrefix(reply, "227 Entering Passive Mode ("), "reply %q", reply)
	open := strings.IndexByte(reply, '(')
	closing := strings.IndexByte(reply, ')')
	require.Greater(c.t, closing, open)
	parts := strings.Split(reply[open+1:closing], ",")
	require.Len(c.t, parts, 6)
	p1, err := strconv.Atoi(parts[4])
	require.NoError(c.t, err)
	p2, err := strconv.Atoi(parts[5])
	require.NoError(c.t, err)
	return p1*256 + p2
}

// dialData opens the data connection to an advertised passive port.
func (c *control) dialData(port int) net.Conn {
	c.t.Helper()
	conn, err := net.DialTimeout("tcp4", fmt.Sprintf("127.0.0.1:%d", port), 3*time.Second)
	require.NoError(c.t, err)
	return conn
}
