package irc

import (
	"sort"
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Conn is the connection handle behind a user. The server writes complete
// lines without the trailing CRLF.
type Conn interface {
	WriteLine(line string) error
	Close() error
}

// Privileges understood by the core
const (
	PrivAuspex   = "channels/auspex"   // view hidden lists
	PrivOverride = "channels/override" // kick regardless of rank
	PrivRehash   = "server/rehash"
)

// User is a registered client. All fields are owned by the server's
// serialization point.
type User struct {
	ID        string
	Nick      string
	Username  string
	Realname  string
	Host      string
	Connected time.Time

	server   *Server
	conn     Conn
	privs    map[string]bool
	modes    map[byte]bool
	caps     capSet
	channels map[*Channel]*Membership
	gone     bool
}

func newUser(s *Server, nick, username, host string, conn Conn) *User {
	return &User{
		ID:        uuid.NewString(),
		Nick:      nick,
		Username:  username,
		Host:      host,
		Connected: time.Now(),
		server:    s,
		conn:      conn,
		privs:     make(map[string]bool),
		modes:     make(map[byte]bool),
		channels:  make(map[*Channel]*Membership),
	}
}

// Hostmask returns nick!user@host
func (u *User) Hostmask() string {
	return u.Nick + "!" + u.Username + "@" + u.Host
}

// HasPrivilege reports whether the user holds a named privilege
func (u *User) HasPrivilege(name string) bool {
	return u.privs[name]
}

// GrantPrivilege adds privileges to the user
func (u *User) GrantPrivilege(names ...string) {
	for _, name := range names {
		u.privs[name] = true
	}
}

// RevokePrivileges drops every privilege, as when a user gives up operator
// status
func (u *User) RevokePrivileges() {
	if len(u.privs) > 0 {
		zap.S().Infow("operator privileges revoked", "nick", u.Nick, "privs", u.Privileges())
	}
	u.privs = make(map[string]bool)
}

// Privileges returns the user's privileges, sorted
func (u *User) Privileges() []string {
	out := make([]string, 0, len(u.privs))
	for name := range u.privs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HasMode reports whether a user mode is set
func (u *User) HasMode(letter byte) bool {
	return u.modes[letter]
}

// ModeString returns the user's modes as "+iw"
func (u *User) ModeString() string {
	letters := make([]byte, 0, len(u.modes))
	for l, on := range u.modes {
		if on {
			letters = append(letters, l)
		}
	}
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })
	return "+" + string(letters)
}

// Channels returns the channels the user is on, sorted by name
func (u *User) Channels() []*Channel {
	out := make([]*Channel, 0, len(u.channels))
	for ch := range u.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// Send writes a message to the user's connection
func (u *User) Send(msg ircmsg.Message) {
	if u.gone || u.conn == nil {
		return
	}
	line, err := msg.Line()
	if err != nil {
		zap.S().Errorw("failed to encode message", "nick", u.Nick, "command", msg.Command, "error", err)
		return
	}
	line = strings.TrimRight(line, "\r\n")
	if err := u.conn.WriteLine(line); err != nil {
		zap.S().Debugw("write failed", "nick", u.Nick, "error", err)
	}
}

// SendFrom sends a command originating from source
func (u *User) SendFrom(source, command string, params ...string) {
	u.Send(ircmsg.MakeMessage(nil, source, command, params...))
}
