// Package ftppath implements the string algebra over POSIX-style paths used by
// the FTP session: the working directory is a single bounded string mutated in
// place by each command, never a parsed tree.
package ftppath

import "strings"

// UpOne removes the trailing segment of p up to and including the last '/'.
// The root path "/" is returned unchanged, and a path without any separator is
// returned as-is.
func UpOne(p string) string {
	idx := strings.LastIndexByte(p, '/')
	if idx < 0 {
		return p
	}
	if idx == 0 {
		// keep the leading slash when the parent is the root
		return "/"
	}
	return p[:idx]
}

// Build combines the current working directory with a command argument and
// returns the resulting path. Four cases, tried in order:
//
//  1. arg is "/" or empty      -> "/"
//  2. arg is ".."              -> UpOne(cwd)
//  3. arg starts with '/'      -> arg (absolute)
//  4. otherwise                -> cwd + "/" + arg
//
// A trailing '/' is dropped unless the result is the root itself. Build commits
// only on success: when the result is capacity bytes or longer it returns the
// input cwd unchanged and false.
func Build(cwd, arg string, capacity int) (string, bool) {
	var out string
	switch {
	case arg == "/" || arg == "":
		out = "/"
	case arg == "..":
		out = UpOne(cwd)
	case arg[0] == '/':
		out = arg
	default:
		if strings.HasSuffix(cwd, "/") {
			out = cwd + arg
		} else {
			out = cwd + "/" + arg
		}
	}

	if len(out) > 1 && strings.HasSuffix(out, "/") {
		out = out[:len(out)-1]
	}

	if len(out) >= capacity {
		return cwd, false
	}
	return out, true
}
