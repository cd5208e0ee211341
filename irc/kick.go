package irc

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ergochat/irc-go/ircmsg"

	"github.com/presbrey/ircd/irc/metrics"
)

type kickCommand struct {
	CommandBase
	server *Server
}

func newKickCommand(s *Server) *kickCommand {
	return &kickCommand{
		CommandBase: NewCommandBase("KICK", 2, "<channel> <nick>{,<nick>} [<reason>]"),
		server:      s,
	}
}

// Execute removes each listed member the issuer outranks. A bad target is
// reported on its own and does not stop the others.
func (k *kickCommand) Execute(u *User, params []string) CmdResult {
	s := k.server

	ch, ok := s.Channel(params[0])
	if !ok {
		s.Notify(u, ERR_NOSUCHCHANNEL, params[0], "No such channel")
		return CmdFailure
	}

	issuer, ok := ch.Membership(u)
	if !ok {
		s.Notify(u, ERR_NOTONCHANNEL, ch.Name, "You're not on that channel")
		return CmdFailure
	}

	reason := u.Nick
	if len(params) > 2 && params[2] != "" {
		reason = params[2]
	}
	if limit := s.config.Limits.KickLen; limit > 0 {
		reason = truncate(reason, limit)
	}

	kicked := 0
	for _, nick := range strings.Split(params[1], ",") {
		if nick == "" {
			continue
		}
		if k.kick(u, issuer, ch, nick, reason) {
			kicked++
		}
	}

	if kicked == 0 {
		return CmdFailure
	}
	return CmdSuccess
}

func (k *kickCommand) kick(u *User, issuer *Membership, ch *Channel, nick, reason string) bool {
	s := k.server

	target, ok := s.User(nick)
	if !ok {
		s.Notify(u, ERR_NOSUCHNICK, nick, "No such nick/channel")
		return false
	}
	victim, ok := ch.Membership(target)
	if !ok {
		s.Notify(u, ERR_USERNOTINCHANNEL, target.Nick, ch.Name, "They aren't on that channel")
		return false
	}

	if issuer.Rank() <= victim.Rank() && !u.HasPrivilege(PrivOverride) {
		s.Notify(u, ERR_CHANOPRIVSNEEDED, ch.Name, fmt.Sprintf("You must have a higher channel rank than %s to kick them", target.Nick))
		return false
	}

	ch.Send(ircmsg.MakeMessage(nil, u.Hostmask(), "KICK", ch.Name, target.Nick, reason), nil)
	s.Leave(ch, target)
	metrics.Kicks.Inc()
	return true
}

// truncate shortens s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
