package irc

import (
	"errors"

	"github.com/ergochat/irc-go/ircmsg"
)

// registerCoreCommands fills the command table with the built-in commands.
// Calling it again replaces them without touching module commands.
func (s *Server) registerCoreCommands() {
	s.commands.Register(newKickCommand(s))
	s.commands.Register(newModeCommand(s))
	s.commands.Register(CommandFunc("JOIN", 1, "<channel>{,<channel>} [<key>{,<key>}]", s.handleJoin))
	s.commands.Register(CommandFunc("PART", 1, "<channel>{,<channel>} [<reason>]", s.handlePart))
	s.commands.Register(CommandFunc("NAMES", 1, "<channel>{,<channel>}", s.handleNames))
	s.commands.Register(CommandFunc("NICK", 1, "<nick>", s.handleNick))
	s.commands.Register(CommandFunc("QUIT", 0, "[<reason>]", s.handleQuit))
	s.commands.Register(CommandFunc("PING", 1, "<token>", s.handlePing))
	s.commands.Register(CommandFunc("PONG", 0, "[<token>]", func(*User, []string) CmdResult { return CmdSuccess }))
	s.commands.Register(CommandFunc("OPER", 2, "<name> <password>", s.handleOper))
	s.commands.Register(CommandFunc("REHASH", 0, "", s.handleRehash))
}

func (s *Server) handleNick(u *User, params []string) CmdResult {
	err := s.Rename(u, params[0])
	switch {
	case errors.Is(err, ErrErroneousNickname):
		s.Notify(u, ERR_ERRONEUSNICKNAME, params[0], "Erroneous nickname")
		return CmdFailure
	case errors.Is(err, ErrNicknameInUse):
		s.Notify(u, ERR_NICKNAMEINUSE, params[0], "Nickname is already in use")
		return CmdFailure
	}
	return CmdSuccess
}

func (s *Server) handleQuit(u *User, params []string) CmdResult {
	reason := "Client Quit"
	if len(params) > 0 && params[0] != "" {
		reason = "Quit: " + params[0]
	}
	s.Disconnect(u, reason)
	return CmdSuccess
}

func (s *Server) handlePing(u *User, params []string) CmdResult {
	u.Send(ircmsg.MakeMessage(nil, s.Name(), "PONG", s.Name(), params[0]))
	return CmdSuccess
}
