package ftp

// Result is the outcome of one session operation: a control-channel read or
// write, or a command handler. The session loop terminates on anything but
// ResultOK; a quit request travels separately so it never masquerades as an
// error.
type Result int

const (
	// ResultOK means the operation completed and the session continues.
	ResultOK Result = iota

	// ResultTimeout means the peer went quiet past the configured bound.
	// The session ends silently.
	ResultTimeout

	// ResultError means a transport or protocol failure. The session ends
	// after the current reply, if any, has been attempted.
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultTimeout:
		return "timeout"
	case ResultError:
		return "error"
	default:
		return "unknown"
	}
}
