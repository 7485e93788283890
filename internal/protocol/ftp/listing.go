package ftp

import (
	"fmt"

	"github.com/kuba23c/ftp-server/pkg/blockfs"
	"github.com/kuba23c/ftp-server/pkg/fattime"
)

// ListLine renders one directory entry in the EPLF-like format of the LIST
// command: "+/,\t<name>" for directories, "+r,s<size>,\t<name>" for files.
func ListLine(info blockfs.FileInfo) string {
	if info.IsDir {
		return fmt.Sprintf("+/,\t%s\r\n", info.Name)
	}
	return fmt.Sprintf("+r,s%d,\t%s\r\n", info.Size, info.Name)
}

// NlstLine renders one directory entry for NLST: the bare name.
func NlstLine(info blockfs.FileInfo) string {
	return info.Name + "\r\n"
}

// MlsdLine renders one directory entry as RFC 3659 machine-readable facts.
// The Modify fact is omitted for entries without a date, matching filesystems
// that report no timestamp.
func MlsdLine(info blockfs.FileInfo) string {
	kind := "file"
	if info.IsDir {
		kind = "dir"
	}
	if info.Date == 0 {
		return fmt.Sprintf("Type=%s;Size=%d; %s\r\n", kind, info.Size, info.Name)
	}
	return fmt.Sprintf("Type=%s;Size=%d;Modify=%s; %s\r\n",
		kind, info.Size, fattime.String(info.Date, info.Time), info.Name)
}
