package ftp

// handlerFunc is the single signature every command handler shares.
type handlerFunc func(*session) Result

// command binds one uppercase verb to its handler. needsLogin marks the
// verbs behind the USER/PASS gate.
type command struct {
	verb       string
	fn         handlerFunc
	needsLogin bool
}

// commandTable is the static dispatch table. Lookup is a linear scan over
// exact uppercase matches; the parser already uppercased the verb. QUIT is
// absent on purpose: the session loop handles it inline so the goodbye reply
// and loop exit stay in one place.
var commandTable = []command{
	{"PWD", (*session).cmdPwd, true},
	{"CWD", (*session).cmdCwd, true},
	{"CDUP", (*session).cmdCdup, true},
	{"MODE", (*session).cmdMode, true},
	{"STRU", (*session).cmdStru, true},
	{"TYPE", (*session).cmdType, true},
	{"PASV", (*session).cmdPasv, true},
	{"PORT", (*session).cmdPort, true},
	{"NLST", (*session).cmdList, true},
	{"LIST", (*session).cmdList, true},
	{"MLSD", (*session).cmdMlsd, true},
	{"DELE", (*session).cmdDele, true},
	{"NOOP", (*session).cmdNoop, true},
	{"RETR", (*session).cmdRetr, true},
	{"STOR", (*session).cmdStor, true},
	{"MKD", (*session).cmdMkd, true},
	{"RMD", (*session).cmdRmd, true},
	{"RNFR", (*session).cmdRnfr, true},
	{"RNTO", (*session).cmdRnto, true},
	{"FEAT", (*session).cmdFeat, false},
	{"MDTM", (*session).cmdMdtm, true},
	{"SIZE", (*session).cmdSize, true},
	{"SITE", (*session).cmdSite, true},
	{"STAT", (*session).cmdStat, true},
	{"SYST", (*session).cmdSyst, false},
	{"AUTH", (*session).cmdAuth, false},
	{"USER", (*session).cmdUser, false},
	{"PASS", (*session).cmdPass, false},
}

// dispatch routes the parsed command. The second return value requests
// session termination after a QUIT.
//
// The login gate lives here, not in the handlers: a gated verb issued before
// login is a silent no-op — the session stays up and sends nothing. Unusual,
// but deployed clients depend on it.
func (s *session) dispatch() (Result, bool) {
	if s.verb == "QUIT" {
		return ResultOK, true
	}

	for i := range commandTable {
		c := &commandTable[i]
		if c.verb != s.verb {
			continue
		}
		if c.needsLogin && !s.loggedIn() {
			return ResultOK, false
		}
		s.srv.hooks.commandBegin(c.verb)
		if s.srv.metrics != nil {
			s.srv.metrics.RecordCommand(c.verb)
		}
		r := c.fn(s)
		s.srv.hooks.commandEnd(c.verb)
		return r, false
	}

	return s.sendf("500 Unknown command\r\n"), false
}
