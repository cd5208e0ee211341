package irc

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// handleOper grants the privileges of an operator block
func (s *Server) handleOper(u *User, params []string) CmdResult {
	name, password := params[0], params[1]

	op, ok := s.config.Operator(name)
	if !ok || bcrypt.CompareHashAndPassword([]byte(op.Password), []byte(password)) != nil {
		zap.S().Warnw("failed OPER attempt", "nick", u.Nick, "host", u.Host, "name", name)
		s.Notify(u, ERR_PASSWDMISMATCH, "Password incorrect")
		return CmdFailure
	}

	u.GrantPrivilege(op.Privs...)
	if !u.modes['o'] {
		u.modes['o'] = true
		u.SendFrom(u.Nick, "MODE", u.Nick, "+o")
	}
	s.Notify(u, RPL_YOUREOPER, "You are now an IRC operator")

	zap.S().Infow("operator login", "nick", u.Nick, "name", name, "privs", op.Privs)
	return CmdSuccess
}

// handleRehash reloads the configuration and lets every module rebuild
// from it
func (s *Server) handleRehash(u *User, params []string) CmdResult {
	if !u.HasPrivilege(PrivRehash) {
		s.Notify(u, ERR_NOPRIVILEGES, "Permission Denied- You're not an IRC operator")
		return CmdFailure
	}

	var source string
	if len(params) > 0 {
		source = params[0]
	}

	s.Notify(u, RPL_REHASHING, s.config.Source, "Rehashing")
	if err := s.Rehash(source); err != nil {
		u.SendFrom(s.Name(), "NOTICE", u.Nick, fmt.Sprintf("*** Rehash failed: %v", err))
		return CmdFailure
	}
	return CmdSuccess
}
