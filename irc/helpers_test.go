package irc

import (
	"testing"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/stretchr/testify/require"

	"github.com/presbrey/ircd/irc/config"
)

// recorder is a Conn that keeps every line written to it
type recorder struct {
	lines  []string
	closed bool
}

func (r *recorder) WriteLine(line string) error {
	r.lines = append(r.lines, line)
	return nil
}

func (r *recorder) Close() error {
	r.closed = true
	return nil
}

func (r *recorder) reset() {
	r.lines = nil
}

// messages parses every recorded line
func (r *recorder) messages(t *testing.T) []ircmsg.Message {
	t.Helper()
	out := make([]ircmsg.Message, 0, len(r.lines))
	for _, line := range r.lines {
		msg, err := ircmsg.ParseLine(line)
		require.NoError(t, err, "line %q", line)
		out = append(out, msg)
	}
	return out
}

// find returns the recorded messages with the given command or numeric
func (r *recorder) find(t *testing.T, command string) []ircmsg.Message {
	t.Helper()
	var out []ircmsg.Message
	for _, msg := range r.messages(t) {
		if msg.Command == command {
			out = append(out, msg)
		}
	}
	return out
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(config.Default())
}

func connect(t *testing.T, s *Server, nick string) (*User, *recorder) {
	t.Helper()
	rec := &recorder{}
	u, err := s.Connect(nick, "~"+nick, "host.test", rec)
	require.NoError(t, err)
	return u, rec
}

func join(t *testing.T, s *Server, u *User, channel string) *Membership {
	t.Helper()
	m, err := s.Join(u, channel)
	require.NoError(t, err)
	return m
}
