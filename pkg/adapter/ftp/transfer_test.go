package ftp

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuba23c/ftp-server/pkg/blockfs"
)

// ============================================================================
// Directory listings over the data channel
// ============================================================================

// S2: passive-mode LIST with the EPLF-like line format.
func TestListPassive(t *testing.T) {
	srv, fs := startServer(t, testConfig(t))
	mkFile(t, fs, "/file.bin", 100)
	require.NoError(t, fs.Mkdir("/sub"))
	mkFile(t, fs, "/.hidden", 1)

	c := dialControl(t, srv)
	c.login()

	port := c.pasv()
	// First session on slot 0: base + rotated offset of 1.
	assert.Equal(t, srv.cfg.DataPort+1, port)

	data := c.dialData(port)
	c.send("LIST")
	c.expect("150 Accepted data connection")

	payload, err := io.ReadAll(data)
	require.NoError(t, err)
	require.NoError(t, data.Close())

	lines := strings.Split(strings.TrimRight(string(payload), "\r\n"), "\r\n")
	sort.Strings(lines)
	assert.Equal(t, []string{"+/,\tsub", "+r,s100,\tfile.bin"}, lines)

	c.expect("226 Directory send OK.")
}

func TestNlstStreamsBareNames(t *testing.T) {
	srv, fs := startServer(t, testConfig(t))
	mkFile(t, fs, "/one", 1)
	mkFile(t, fs, "/two", 2)

	c := dialControl(t, srv)
	c.login()

	data := c.dialData(c.pasv())
	c.send("NLST")
	c.expect("150 Accepted data connection")

	payload, err := io.ReadAll(data)
	require.NoError(t, err)
	assert.Equal(t, "one\r\ntwo\r\n", string(payload))
	c.expect("226 Directory send OK.")
}

func TestMlsdFactsAndCount(t *testing.T) {
	srv, fs := startServer(t, testConfig(t))
	mkFile(t, fs, "/a.bin", 5)
	require.NoError(t, fs.Mkdir("/d"))

	c := dialControl(t, srv)
	c.login()
	require.Equal(t, "200 Ok", c.cmd("MDTM 20240115103000 a.bin"))

	data := c.dialData(c.pasv())
	c.send("MLSD")
	c.expect("150 Accepted data connection")

	payload, err := io.ReadAll(data)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Type=file;Size=5;Modify=20240115103000; a.bin\r\n")
	assert.Contains(t, string(payload), "Type=dir;")

	c.expect("226 Options: -a -l, 2 matches total")
}

func TestListWithoutDataMode(t *testing.T) {
	srv, _ := startServer(t, testConfig(t))

	c := dialControl(t, srv)
	c.login()
	assert.Equal(t, "425 Can't create connection", c.cmd("LIST"))
}

// ============================================================================
// RETR
// ============================================================================

// RETR delivers exactly N bytes, byte-for-byte equal, then 226 on control.
func TestRetrByteEquality(t *testing.T) {
	srv, fs := startServer(t, testConfig(t))

	want := make([]byte, 100_000)
	_, err := rand.Read(want)
	require.NoError(t, err)

	f, err := fs.Open("/blob.bin", blockfs.OpenCreateWrite)
	require.NoError(t, err)
	_, err = f.Write(want)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	c := dialControl(t, srv)
	c.login()

	port := c.pasv()
	data := c.dialData(port)
	c.send("RETR blob.bin")
	c.expect(fmt.Sprintf("150 Connected to port %d, %d bytes to download", port, len(want)))

	got, err := io.ReadAll(data)
	require.NoError(t, err)
	require.NoError(t, data.Close())
	assert.True(t, bytes.Equal(want, got), "payload mismatch: got %d bytes, want %d", len(got), len(want))

	c.expect("226 File successfully transferred")

	// The working directory is restored and the session stays usable.
	assert.Equal(t, "257 \"/\" is your current directory", c.cmd("PWD"))
	assert.Equal(t, uint32(1), srv.Stats().FilesSentOK)
}

func TestRetrErrors(t *testing.T) {
	srv, _ := startServer(t, testConfig(t))

	c := dialControl(t, srv)
	c.login()

	assert.Equal(t, "501 No file name", c.cmd("RETR"))

	c.pasv()
	assert.Equal(t, "550 File ghost.bin not found", c.cmd("RETR ghost.bin"))
}

// ============================================================================
// STOR
// ============================================================================

// S3: a 33 KiB upload with the default 32 KiB buffer persists as exactly two
// filesystem writes: one full buffer and one 1 KiB flush.
func TestStorAlignedWrites(t *testing.T) {
	srv, fs := startServer(t, testConfig(t))

	payload := make([]byte, 33*1024)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	c := dialControl(t, srv)
	c.login()

	port := c.pasv()
	data := c.dialData(port)
	c.send("STOR x.bin")
	c.expect(fmt.Sprintf("150 Connected to port %d", port))

	_, err = data.Write(payload)
	require.NoError(t, err)
	require.NoError(t, data.Close())

	c.expect("226 File successfully transferred")

	assert.Equal(t, []int{32 * 1024, 1024}, fs.WriteSizes())

	info, err := fs.Stat("/x.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), info.Size)
	assert.Equal(t, uint32(1), srv.Stats().FilesReceivedOK)
}

// Upload then download returns the identical bytes.
func TestStorRetrRoundTrip(t *testing.T) {
	srv, _ := startServer(t, testConfig(t))

	payload := make([]byte, 50_000)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	c := dialControl(t, srv)
	c.login()

	data := c.dialData(c.pasv())
	c.send("STOR round.bin")
	c.line() // 150
	_, err = data.Write(payload)
	require.NoError(t, err)
	require.NoError(t, data.Close())
	c.expect("226 File successfully transferred")

	data = c.dialData(c.pasv())
	c.send("RETR round.bin")
	c.line() // 150
	got, err := io.ReadAll(data)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))
	c.expect("226 File successfully transferred")
}

func TestStorEmptyFile(t *testing.T) {
	srv, fs := startServer(t, testConfig(t))

	c := dialControl(t, srv)
	c.login()

	data := c.dialData(c.pasv())
	c.send("STOR empty.bin")
	c.line() // 150
	require.NoError(t, data.Close())
	c.expect("226 File successfully transferred")

	info, err := fs.Stat("/empty.bin")
	require.NoError(t, err)
	assert.Zero(t, info.Size)
	assert.Empty(t, fs.WriteSizes(), "no flush for an empty stream")
}

// ============================================================================
// Passive port rotation
// ============================================================================

// Successive sessions on one slot advertise distinct ports within the slot's
// 25-port window.
func TestPasvPortRotation(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxClients = 1
	srv, _ := startServer(t, cfg)

	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		c := dialControl(t, srv)
		c.login()
		port := c.pasv()
		assert.GreaterOrEqual(t, port, srv.cfg.DataPort)
		assert.Less(t, port, srv.cfg.DataPort+portIncrementOffset)
		seen[port] = true
		c.cmd("QUIT")

		// Wait for the slot to come free before reconnecting.
		require.Eventually(t, func() bool {
			return srv.Stats().ClientsActive == 0
		}, 3*time.Second, 10*time.Millisecond)
	}
	assert.Len(t, seen, 3, "each session advertises a fresh port")
}
