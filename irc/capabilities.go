package irc

import (
	"sort"
	"strings"

	"github.com/ergochat/irc-go/ircmsg"
)

// Capabilities offered in CAP LS
const (
	CapMultiPrefix     = "multi-prefix"      // every prefix in NAMES, not just the highest
	CapUserhostInNames = "userhost-in-names" // nick!user@host in NAMES
)

var supportedCaps = map[string]bool{
	CapMultiPrefix:     true,
	CapUserhostInNames: true,
}

// capSet holds the capabilities a connection has enabled
type capSet map[string]bool

func (cs capSet) has(name string) bool { return cs[name] }

func (cs capSet) list() string {
	names := make([]string, 0, len(cs))
	for name := range cs {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, " ")
}

// HasCap reports whether the user's connection negotiated a capability
func (u *User) HasCap(name string) bool {
	return u.caps.has(name)
}

// handleCAP processes CAP LS, LIST, REQ and END on the serialization point
func (c *Client) handleCAP(params []string) {
	if len(params) < 1 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "CAP", "Not enough parameters")
		return
	}

	switch sub := strings.ToUpper(params[0]); sub {
	case "LS":
		if c.user == nil {
			c.negotiating = true
		}
		names := make([]string, 0, len(supportedCaps))
		for name := range supportedCaps {
			names = append(names, name)
		}
		sort.Strings(names)
		c.sendCap("LS", strings.Join(names, " "))
	case "LIST":
		c.sendCap("LIST", c.caps.list())
	case "REQ":
		if c.user == nil {
			c.negotiating = true
		}
		if len(params) < 2 {
			c.sendCap("NAK", "")
			return
		}
		c.requestCaps(params[1])
	case "END":
		c.negotiating = false
	case "ACK", "NAK":
	default:
		c.sendNumeric(ERR_INVALIDCAPCMD, sub, "Invalid CAP command")
	}
}

// requestCaps enables or disables the requested capabilities. A request
// naming any unknown capability is refused as a whole.
func (c *Client) requestCaps(list string) {
	fields := strings.Fields(list)
	for _, name := range fields {
		if !supportedCaps[strings.TrimPrefix(name, "-")] {
			c.sendCap("NAK", list)
			return
		}
	}
	for _, name := range fields {
		if strings.HasPrefix(name, "-") {
			delete(c.caps, name[1:])
		} else {
			c.caps[name] = true
		}
	}
	c.sendCap("ACK", list)
}

func (c *Client) sendCap(sub, arg string) {
	nick := c.nick
	if c.user != nil {
		nick = c.user.Nick
	}
	if nick == "" {
		nick = "*"
	}
	c.send(ircmsg.MakeMessage(nil, c.server.Name(), "CAP", nick, sub, arg))
}
