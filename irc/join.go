package irc

import (
	"strconv"
	"strings"

	"github.com/ergochat/irc-go/ircmsg"
)

func (s *Server) handleJoin(u *User, params []string) CmdResult {
	if params[0] == "0" {
		for _, ch := range u.Channels() {
			s.part(u, ch, "Left all channels")
		}
		return CmdSuccess
	}

	var keys []string
	if len(params) > 1 {
		keys = strings.Split(params[1], ",")
	}

	joined := 0
	for i, name := range strings.Split(params[0], ",") {
		if name == "" {
			continue
		}
		var key string
		if i < len(keys) {
			key = keys[i]
		}
		if s.join(u, name, key) {
			joined++
		}
	}

	if joined == 0 {
		return CmdFailure
	}
	return CmdSuccess
}

func (s *Server) join(u *User, name, key string) bool {
	if ch, exists := s.Channel(name); exists {
		if ch.IsMember(u) {
			return false
		}
		if code, text := s.joinRestriction(u, ch, key); code != 0 {
			s.Notify(u, code, ch.Name, text)
			return false
		}
	}

	m, err := s.Join(u, name)
	if err != nil {
		s.Notify(u, ERR_NOSUCHCHANNEL, name, "No such channel")
		return false
	}

	ch := m.Channel
	ch.Send(ircmsg.MakeMessage(nil, u.Hostmask(), "JOIN", ch.Name), nil)
	s.sendNames(u, ch)
	return true
}

// joinRestriction checks the channel's entry modes. It returns the numeric
// to reply with, or zero when u may join.
func (s *Server) joinRestriction(u *User, ch *Channel, key string) (int, string) {
	if ch.IsBanned(u) {
		return ERR_BANNEDFROMCHAN, "Cannot join channel (+b)"
	}
	if ch.HasMode('i') && !ch.listMatches('I', u) {
		return ERR_INVITEONLYCHAN, "Cannot join channel (+i)"
	}
	if want, ok := ch.ModeParam('k'); ok && key != want {
		return ERR_BADCHANNELKEY, "Cannot join channel (+k)"
	}
	if v, ok := ch.ModeParam('l'); ok {
		if limit, err := strconv.Atoi(v); err == nil && ch.MemberCount() >= limit {
			return ERR_CHANNELISFULL, "Cannot join channel (+l)"
		}
	}
	return 0, ""
}

func (s *Server) handlePart(u *User, params []string) CmdResult {
	reason := ""
	if len(params) > 1 {
		reason = params[1]
	}

	parted := 0
	for _, name := range strings.Split(params[0], ",") {
		if name == "" {
			continue
		}
		ch, ok := s.Channel(name)
		if !ok {
			s.Notify(u, ERR_NOSUCHCHANNEL, name, "No such channel")
			continue
		}
		if !ch.IsMember(u) {
			s.Notify(u, ERR_NOTONCHANNEL, ch.Name, "You're not on that channel")
			continue
		}
		s.part(u, ch, reason)
		parted++
	}

	if parted == 0 {
		return CmdFailure
	}
	return CmdSuccess
}

func (s *Server) part(u *User, ch *Channel, reason string) {
	params := []string{ch.Name}
	if reason != "" {
		params = append(params, reason)
	}
	ch.Send(ircmsg.MakeMessage(nil, u.Hostmask(), "PART", params...), nil)
	s.Leave(ch, u)
}

func (s *Server) handleNames(u *User, params []string) CmdResult {
	for _, name := range strings.Split(params[0], ",") {
		if ch, ok := s.Channel(name); ok {
			s.sendNames(u, ch)
		} else if name != "" {
			s.Notify(u, RPL_ENDOFNAMES, name, "End of /NAMES list")
		}
	}
	return CmdSuccess
}

// sendNames lists the members of ch with their highest prefix, or all of
// them for multi-prefix connections
func (s *Server) sendNames(u *User, ch *Channel) {
	var names []string
	for _, m := range ch.Members() {
		prefix := m.Prefixes()
		if prefix != "" && !u.HasCap(CapMultiPrefix) {
			prefix = prefix[:1]
		}
		name := m.User.Nick
		if u.HasCap(CapUserhostInNames) {
			name = m.User.Hostmask()
		}
		names = append(names, prefix+name)
	}

	symbol := "="
	if ch.HasMode('s') {
		symbol = "@"
	} else if ch.HasMode('p') {
		symbol = "*"
	}

	// Keep each reply comfortably inside the 512 byte line limit
	const maxNames = 400
	var line strings.Builder
	flush := func() {
		if line.Len() > 0 {
			s.Notify(u, RPL_NAMREPLY, symbol, ch.Name, line.String())
			line.Reset()
		}
	}
	for _, n := range names {
		if line.Len()+len(n)+1 > maxNames {
			flush()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(n)
	}
	flush()
	s.Notify(u, RPL_ENDOFNAMES, ch.Name, "End of /NAMES list")
}
