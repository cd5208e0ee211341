package irc

import (
	"strconv"
	"strings"

	"github.com/ergochat/irc-go/ircmsg"
)

type modeCommand struct {
	CommandBase
	server *Server
}

func newModeCommand(s *Server) *modeCommand {
	return &modeCommand{
		CommandBase: NewCommandBase("MODE", 1, "<target> [<modes> [<params>...]]"),
		server:      s,
	}
}

// modeDelta is one applied change, kept for the aggregated broadcast
type modeDelta struct {
	adding bool
	letter byte
	param  string
}

// Execute runs every letter of the mode string as its own change attempt
// and broadcasts the applied ones in a single MODE line
func (c *modeCommand) Execute(u *User, params []string) CmdResult {
	if name := params[0]; name != "" && (name[0] == '#' || name[0] == '&') {
		return c.channelModes(u, params)
	}
	return c.userModes(u, params)
}

func (c *modeCommand) channelModes(u *User, params []string) CmdResult {
	s := c.server

	ch, ok := s.Channel(params[0])
	if !ok {
		s.Notify(u, ERR_NOSUCHCHANNEL, params[0], "No such channel")
		return CmdFailure
	}

	if len(params) == 1 {
		modes, args := ch.ModeString(ch.IsMember(u))
		s.Notify(u, RPL_CHANNELMODEIS, append([]string{ch.Name, modes}, args...)...)
		s.Notify(u, RPL_CREATIONTIME, ch.Name, strconv.FormatInt(ch.Created.Unix(), 10))
		return CmdSuccess
	}

	applied, denied := c.apply(u, ScopeChannel, ch, nil, params[1], params[2:])
	if len(applied) > 0 {
		modes, args := formatModes(applied)
		ch.Send(ircmsg.MakeMessage(nil, u.Hostmask(), "MODE", append([]string{ch.Name, modes}, args...)...), nil)
	}

	if denied {
		return CmdFailure
	}
	return CmdSuccess
}

func (c *modeCommand) userModes(u *User, params []string) CmdResult {
	s := c.server

	target, ok := s.User(params[0])
	if !ok {
		s.Notify(u, ERR_NOSUCHNICK, params[0], "No such nick/channel")
		return CmdFailure
	}
	if target != u {
		s.Notify(u, ERR_USERSDONTMATCH, "Can't change mode for other users")
		return CmdFailure
	}

	if len(params) == 1 {
		s.Notify(u, RPL_UMODEIS, u.ModeString())
		return CmdSuccess
	}

	applied, denied := c.apply(u, ScopeUser, nil, u, params[1], params[2:])
	if len(applied) > 0 {
		modes, _ := formatModes(applied)
		u.SendFrom(u.Nick, "MODE", u.Nick, modes)
	}

	if denied {
		return CmdFailure
	}
	return CmdSuccess
}

// apply walks a mode string, consuming parameters as each mode requires
func (c *modeCommand) apply(u *User, scope ModeScope, ch *Channel, target *User, modestr string, args []string) (applied []modeDelta, denied bool) {
	s := c.server
	adding := true

	for i := 0; i < len(modestr); i++ {
		letter := modestr[i]
		switch letter {
		case '+':
			adding = true
			continue
		case '-':
			adding = false
			continue
		}

		def, ok := s.modes.Lookup(scope, letter)
		if !ok {
			if scope == ScopeChannel {
				s.Notify(u, ERR_UNKNOWNMODE, string(letter), "is unknown mode char to me")
			} else {
				s.Notify(u, ERR_UMODEUNKNOWNFLAG, "Unknown MODE flag")
			}
			continue
		}

		var param string
		if def.NeedsParam(adding) {
			if len(args) > 0 {
				param, args = args[0], args[1:]
			} else if def.Kind != KindList {
				continue
			}
		}

		mc := &ModeChange{Source: u, Target: target, Channel: ch, Mode: def, Param: param, Adding: adding}
		switch s.ApplyMode(mc) {
		case ModeApplied:
			applied = append(applied, modeDelta{adding: adding, letter: letter, param: mc.Param})
		case ModeDenied:
			denied = true
		}
	}
	return applied, denied
}

// formatModes renders deltas as "+o-v" followed by their parameters
func formatModes(deltas []modeDelta) (string, []string) {
	var sb strings.Builder
	var args []string
	var sign byte
	for _, d := range deltas {
		want := byte('-')
		if d.adding {
			want = '+'
		}
		if sign != want {
			sb.WriteByte(want)
			sign = want
		}
		sb.WriteByte(d.letter)
		if d.param != "" {
			args = append(args, d.param)
		}
	}
	return sb.String(), args
}
