package logger

import "log/slog"

// Standard field keys for structured logging. Use these consistently across
// the server so sessions, transfers and supervisor events can be correlated.
const (
	// Session identification
	KeySlot     = "slot"      // client slot index in the worker pool
	KeyClientIP = "client_ip" // control connection peer address

	// Protocol
	KeyVerb  = "verb"  // FTP command verb (RETR, STOR, ...)
	KeyReply = "reply" // reply line sent on the control channel

	// File operations
	KeyPath    = "path"     // path the command operates on
	KeyOldPath = "old_path" // rename source
	KeyNewPath = "new_path" // rename destination

	// Transfers
	KeyBytes    = "bytes"     // bytes moved over the data channel
	KeyDataPort = "data_port" // negotiated data port

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

// Slot returns a slog.Attr for the client slot index
func Slot(n int) slog.Attr {
	return slog.Int(KeySlot, n)
}

// ClientIP returns a slog.Attr for the control connection peer
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Verb returns a slog.Attr for an FTP command verb
func Verb(v string) slog.Attr {
	return slog.String(KeyVerb, v)
}

// Path returns a slog.Attr for a file path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Bytes returns a slog.Attr for a transfer byte count
func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}

// DataPort returns a slog.Attr for the negotiated data port
func DataPort(p uint16) slog.Attr {
	return slog.Int(KeyDataPort, int(p))
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
