package ftp

import (
	"time"

	wire "github.com/kuba23c/ftp-server/internal/protocol/ftp"
)

// Access, negotiation and housekeeping verbs. Reply strings are kept
// byte-compatible with the deployed reference implementation, typos included.

func (s *session) cmdUser() Result {
	user, pass := s.srv.creds.Snapshot()
	if s.args == user {
		// Hold the snapshot so a concurrent credential swap cannot split
		// this login across two different pairs.
		s.username, s.password = user, pass
		s.user = userAwaitingPassword
		return s.sendf("331 OK. Password required\r\n")
	}
	return s.sendf("530 Username not known\r\n")
}

func (s *session) cmdPass() Result {
	if s.user == userAnonymous {
		return s.sendf("530 User not specified\r\n")
	}
	if s.args == s.password {
		s.user = userLoggedIn
		return s.sendf("230 OK, logged in as user\r\n")
	}
	return s.sendf("530 Password not correct\r\n")
}

func (s *session) cmdPwd() Result {
	return s.sendf("257 \"%s\" is your current directory\r\n", s.cwd)
}

func (s *session) cmdCwd() Result {
	if s.args == "" {
		return s.sendf("501 No directory name\r\n")
	}
	if !s.buildPath(s.args) {
		return s.sendf("500 Command line too long\r\n")
	}
	if s.cwd != "/" {
		if _, ok := s.statPath(s.cwd); !ok {
			return s.sendf("550 Failed to change directory to %s\r\n", s.cwd)
		}
	}
	return s.sendf("250 Directory successfully changed.\r\n")
}

// cmdCdup resets the working directory to the root rather than stepping one
// level up. The reference implementation does this in both of its variants;
// clients of this server expect it.
func (s *session) cmdCdup() Result {
	s.cwd = "/"
	return s.sendf("250 Directory successfully changed to root.\r\n")
}

func (s *session) cmdMode() Result {
	if s.args == "S" {
		return s.sendf("200 S Ok\r\n")
	}
	return s.sendf("504 Only S(tream) is suported\r\n")
}

func (s *session) cmdStru() Result {
	if s.args == "F" {
		return s.sendf("200 F Ok\r\n")
	}
	return s.sendf("504 Only F(ile) is suported\r\n")
}

func (s *session) cmdType() Result {
	switch s.args {
	case "A":
		return s.sendf("200 TYPE is now ASCII\r\n")
	case "I":
		return s.sendf("200 TYPE is now 8-bit binary\r\n")
	default:
		return s.sendf("504 Unknow TYPE\r\n")
	}
}

func (s *session) cmdPasv() Result {
	if !s.srv.cfg.Passive.enabled() {
		s.dc.mode = modeUnset
		return s.sendf("421 Passive mode not available\r\n")
	}

	s.dc.port = s.slot.dataPort(s.srv.cfg.DataPort)

	if err := s.dc.pasvOpen(); err != nil {
		s.log.Warn("passive open failed", "error", err.Error())
		s.dc.mode = modeUnset
		return s.sendf("425 Can't set connection management to passive\r\n")
	}

	// Drop any data socket left over from a previous transfer.
	s.dc.close()
	s.dc.mode = modePassive

	return s.sendf("227 Entering Passive Mode (%s).\r\n",
		wire.FormatPasvTuple(s.serverIP, s.dc.port))
}

func (s *session) cmdPort() Result {
	s.dc.close()
	// A prior passive listener is useless once the client switches to
	// active mode; release its port.
	s.dc.pasvClose()

	if s.args == "" {
		s.dc.mode = modeUnset
		return s.sendf("501 no parameters given\r\n")
	}

	ip, port, err := wire.ParsePortTuple(s.args)
	if err != nil {
		s.dc.mode = modeUnset
		return s.sendf("501 Can't interpret parameters\r\n")
	}

	s.dc.clientIP = ip
	s.dc.port = port
	s.dc.mode = modeActive
	s.log.Debug("data target set", "address", ip.String(), "port", port)
	return s.sendf("200 PORT command successful\r\n")
}

func (s *session) cmdNoop() Result {
	return s.sendf("200 Zzz...\r\n")
}

func (s *session) cmdFeat() Result {
	return s.sendf("211-Extensions supported:\r\n MDTM\r\n MLSD\r\n SIZE\r\n SITE FREE\r\n211 End.\r\n")
}

func (s *session) cmdSyst() Result {
	return s.sendf("215 FTP Server, V1.0\r\n")
}

func (s *session) cmdStat() Result {
	idleMinutes := (time.Duration(s.srv.cfg.InactiveCount) * s.srv.cfg.ReadTimeout) / time.Minute
	return s.sendf("221 FTP Server status: you will be disconnected after %d minutes of inactivity\r\n", idleMinutes)
}

func (s *session) cmdAuth() Result {
	return s.sendf("504 Not available\r\n")
}
