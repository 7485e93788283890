package ftp

import (
	"io"
	"strings"

	wire "github.com/kuba23c/ftp-server/internal/protocol/ftp"
	"github.com/kuba23c/ftp-server/pkg/fattime"
	"github.com/kuba23c/ftp-server/pkg/ftppath"
)

// Filesystem verbs. The working directory doubles as the scratch path: each
// handler appends its argument with buildPath, operates, then strips the
// segment again with upOne — the same in-place discipline the reference
// implementation uses.

func (s *session) cmdList() Result {
	dir, err := s.srv.fs.OpenDir(s.cwd)
	if err != nil {
		return s.sendf("550 Can't open directory %s\r\n", s.args)
	}
	defer dir.Close()

	if err := s.dc.open(); err != nil {
		s.log.Debug("data open failed", "error", err.Error())
		return s.sendf("425 Can't create connection\r\n")
	}

	if r := s.sendf("150 Accepted data connection\r\n"); r != ResultOK {
		s.dc.close()
		return r
	}

	// When the verb is exactly LIST, emit the EPLF-like lines; NLST gets
	// bare names.
	nlst := s.verb != "LIST"
	for {
		info, err := dir.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		if strings.HasPrefix(info.Name, ".") {
			continue
		}
		var line string
		if nlst {
			line = wire.NlstLine(info)
		} else {
			line = wire.ListLine(info)
		}
		if err := s.writeData([]byte(line)); err != nil {
			break
		}
	}

	s.dc.close()
	return s.sendf("226 Directory send OK.\r\n")
}

func (s *session) cmdMlsd() Result {
	dir, err := s.srv.fs.OpenDir(s.cwd)
	if err != nil {
		return s.sendf("550 Can't open directory %s\r\n", s.args)
	}
	defer dir.Close()

	if err := s.dc.open(); err != nil {
		s.log.Debug("data open failed", "error", err.Error())
		return s.sendf("425 Can't create connection\r\n")
	}

	if r := s.sendf("150 Accepted data connection\r\n"); r != ResultOK {
		s.dc.close()
		return r
	}

	matches := 0
	for {
		info, err := dir.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		if strings.HasPrefix(info.Name, ".") {
			continue
		}
		if err := s.writeData([]byte(wire.MlsdLine(info))); err != nil {
			break
		}
		matches++
	}

	s.dc.close()
	return s.sendf("226 Options: -a -l, %d matches total\r\n", matches)
}

func (s *session) cmdDele() Result {
	if s.args == "" {
		return s.sendf("501 No file name\r\n")
	}
	if !s.buildPath(s.args) {
		return s.sendf("500 Command line too long\r\n")
	}
	if _, ok := s.statPath(s.cwd); !ok {
		s.upOne()
		return s.sendf("550 file %s not found\r\n", s.args)
	}
	if err := s.srv.fs.Unlink(s.cwd); err != nil {
		s.upOne()
		return s.sendf("450 Can't delete %s\r\n", s.args)
	}
	r := s.sendf("250 Deleted %s\r\n", s.args)
	s.upOne()
	return r
}

func (s *session) cmdMkd() Result {
	if s.args == "" {
		return s.sendf("501 No directory name\r\n")
	}
	if !s.buildPath(s.args) {
		return s.sendf("500 Command line too long\r\n")
	}
	if _, ok := s.statPath(s.cwd); ok {
		s.upOne()
		return s.sendf("521 \"%s\" directory already exists\r\n", s.args)
	}
	if err := s.srv.fs.Mkdir(s.cwd); err != nil {
		s.upOne()
		return s.sendf("550 Can't create \"%s\"\r\n", s.args)
	}
	s.log.Debug("directory created", "path", s.cwd)
	// The new directory stays the working directory, as the reference
	// implementation leaves it.
	return s.sendf("257 \"%s\" created\r\n", s.args)
}

func (s *session) cmdRmd() Result {
	if s.args == "" {
		return s.sendf("501 No directory name\r\n")
	}
	if !s.buildPath(s.args) {
		return s.sendf("500 Command line too long\r\n")
	}
	if _, ok := s.statPath(s.cwd); !ok {
		s.upOne()
		return s.sendf("550 Directory \"%s\" not found\r\n", s.args)
	}
	if err := s.srv.fs.Unlink(s.cwd); err != nil {
		s.upOne()
		return s.sendf("501 Can't delete \"%s\"\r\n", s.args)
	}
	r := s.sendf("250 \"%s\" removed\r\n", s.args)
	s.upOne()
	return r
}

func (s *session) cmdRnfr() Result {
	if s.args == "" {
		return s.sendf("501 No file name\r\n")
	}
	from, ok := ftppath.Build(s.cwd, s.args, maxParam)
	if !ok {
		return s.sendf("500 Command line too long\r\n")
	}
	s.renameFrom = from
	if _, ok := s.statPath(from); !ok {
		return s.sendf("550 file \"%s\" not found\r\n", s.args)
	}
	s.log.Debug("rename source set", "path", from)
	return s.sendf("350 RNFR accepted - file exists, ready for destination\r\n")
}

func (s *session) cmdRnto() Result {
	if s.args == "" {
		return s.sendf("501 No file name\r\n")
	}
	if s.renameFrom == "" {
		return s.sendf("503 Need RNFR before RNTO\r\n")
	}
	from := s.renameFrom
	s.renameFrom = ""

	if !s.buildPath(s.args) {
		return s.sendf("500 Command line too long\r\n")
	}
	if _, ok := s.statPath(s.cwd); ok {
		r := s.sendf("553 \"%s\" already exists\r\n", s.args)
		s.upOne()
		return r
	}

	var r Result
	if err := s.srv.fs.Rename(from, s.cwd); err != nil {
		r = s.sendf("451 Rename/move failure\r\n")
	} else {
		r = s.sendf("250 File successfully renamed or moved\r\n")
	}
	s.upOne()
	return r
}

func (s *session) cmdMdtm() Result {
	date, tm, name, haveTime := fattime.ParseMDTM(s.args)

	if name == "" {
		return s.sendf("501 No file name\r\n")
	}
	if !s.buildPath(name) {
		return s.sendf("500 Command line too long\r\n")
	}

	info, ok := s.statPath(s.cwd)
	if !ok {
		s.upOne()
		return s.sendf("550 file \"%s\" not found\r\n", s.args)
	}

	if !haveTime {
		s.upOne()
		return s.sendf("213 %s\r\n", fattime.String(info.Date, info.Time))
	}

	info.Date, info.Time = date, tm
	var r Result
	if err := s.srv.fs.Utime(s.cwd, info); err != nil {
		r = s.sendf("550 Unable to modify time\r\n")
	} else {
		r = s.sendf("200 Ok\r\n")
	}
	s.upOne()
	return r
}

func (s *session) cmdSize() Result {
	if s.args == "" {
		return s.sendf("501 No file name\r\n")
	}
	if !s.buildPath(s.args) {
		return s.sendf("500 Command line too long\r\n")
	}
	info, ok := s.statPath(s.cwd)
	var r Result
	if !ok || info.IsDir {
		r = s.sendf("550 No such file\r\n")
	} else {
		r = s.sendf("213 %d\r\n", info.Size)
	}
	s.upOne()
	return r
}

func (s *session) cmdSite() Result {
	if s.args != "FREE" {
		return s.sendf("550 Unknown SITE command %s\r\n", s.args)
	}
	free, err := s.srv.fs.GetFree()
	if err != nil {
		return s.sendf("550 Unknown SITE command %s\r\n", s.args)
	}
	// clusters * sectors-per-cluster * 512 bytes >> 20 == ... >> 11 in
	// sector units: megabytes without 64-bit division.
	freeMB := uint64(free.FreeClusters) * uint64(free.ClusterSectors) >> 11
	capMB := uint64(free.TotalClusters) * uint64(free.ClusterSectors) >> 11
	return s.sendf("211 %d MB free of %d MB capacity\r\n", freeMB, capMB)
}
