package ftp

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"
	"time"

	jftp "github.com/jlaffaye/ftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// End-to-end exercise with a real FTP client library: login, upload,
// download, rename, size and delete over passive mode.
func TestRealClientRoundTrip(t *testing.T) {
	srv, _ := startServer(t, testConfig(t))

	conn, err := jftp.Dial(serverAddr(t, srv),
		jftp.DialWithTimeout(5*time.Second),
		jftp.DialWithDisabledEPSV(true),
	)
	require.NoError(t, err)
	require.NoError(t, conn.Login("user", "pass"))

	payload := make([]byte, 48_000)
	_, err = rand.Read(payload)
	require.NoError(t, err)

	require.NoError(t, conn.Stor("upload.bin", bytes.NewReader(payload)))

	size, err := conn.FileSize("upload.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), size)

	resp, err := conn.Retr("upload.bin")
	require.NoError(t, err)
	got, err := io.ReadAll(resp)
	require.NoError(t, err)
	require.NoError(t, resp.Close())
	assert.True(t, bytes.Equal(payload, got))

	require.NoError(t, conn.Rename("upload.bin", "renamed.bin"))
	require.NoError(t, conn.Delete("renamed.bin"))

	assert.NoError(t, conn.Quit())
}
