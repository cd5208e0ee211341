package irc

import (
	"sort"
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"go.uber.org/zap"

	"github.com/presbrey/ircd/irc/metrics"
)

// Membership records that a user has joined a channel
type Membership struct {
	User    *User
	Channel *Channel
	Joined  time.Time

	prefixes map[byte]bool
	rank     Rank
}

// Rank returns the weight of the highest prefix the member holds
func (m *Membership) Rank() Rank {
	return m.rank
}

// HasPrefix reports whether the member holds a prefix mode
func (m *Membership) HasPrefix(letter byte) bool {
	return m.prefixes[letter]
}

// SetPrefix grants or removes a prefix mode and reports whether anything changed
func (m *Membership) SetPrefix(letter byte, adding bool) bool {
	if _, ok := PrefixByLetter(letter); !ok {
		return false
	}
	if m.prefixes[letter] == adding {
		return false
	}
	if adding {
		m.prefixes[letter] = true
	} else {
		delete(m.prefixes, letter)
	}

	m.rank = RankNone
	for l := range m.prefixes {
		if p, _ := PrefixByLetter(l); p.Rank > m.rank {
			m.rank = p.Rank
		}
	}
	return true
}

// Prefixes returns every prefix symbol held, highest first
func (m *Membership) Prefixes() string {
	var sb strings.Builder
	for _, p := range prefixModes {
		if m.prefixes[p.Letter] {
			sb.WriteByte(p.Symbol)
		}
	}
	return sb.String()
}

// ListEntry is one entry of a list mode such as a ban
type ListEntry struct {
	Mask   string    `json:"mask"`
	Setter string    `json:"setter"`
	SetAt  time.Time `json:"set_at"`
}

// Channel represents an IRC channel
type Channel struct {
	Name    string
	Created time.Time

	key     string
	members map[*User]*Membership
	lists   map[byte][]ListEntry
	modes   map[byte]bool
	params  map[byte]string
}

func newChannel(name string) *Channel {
	return &Channel{
		Name:    name,
		Created: time.Now(),
		key:     FoldName(name),
		members: make(map[*User]*Membership),
		lists:   make(map[byte][]ListEntry),
		modes:   map[byte]bool{'n': true, 't': true},
		params:  make(map[byte]string),
	}
}

// Membership returns the membership of u, if any
func (c *Channel) Membership(u *User) (*Membership, bool) {
	m, ok := c.members[u]
	return m, ok
}

// Rank returns the rank of u in the channel. ok is false for non-members.
func (c *Channel) Rank(u *User) (rank Rank, ok bool) {
	m, ok := c.members[u]
	if !ok {
		return RankNone, false
	}
	return m.rank, true
}

// IsMember reports whether u has joined the channel
func (c *Channel) IsMember(u *User) bool {
	_, ok := c.members[u]
	return ok
}

// MemberCount returns the number of members
func (c *Channel) MemberCount() int {
	return len(c.members)
}

// Members returns the memberships sorted by nickname
func (c *Channel) Members() []*Membership {
	out := make([]*Membership, 0, len(c.members))
	for _, m := range c.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return FoldName(out[i].User.Nick) < FoldName(out[j].User.Nick)
	})
	return out
}

// List returns a copy of the entries of a list mode
func (c *Channel) List(letter byte) []ListEntry {
	entries := c.lists[letter]
	out := make([]ListEntry, len(entries))
	copy(out, entries)
	return out
}

func (c *Channel) addListEntry(letter byte, entry ListEntry) bool {
	for _, e := range c.lists[letter] {
		if strings.EqualFold(e.Mask, entry.Mask) {
			return false
		}
	}
	c.lists[letter] = append(c.lists[letter], entry)
	return true
}

func (c *Channel) removeListEntry(letter byte, mask string) bool {
	entries := c.lists[letter]
	for i, e := range entries {
		if strings.EqualFold(e.Mask, mask) {
			c.lists[letter] = append(entries[:i:i], entries[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Channel) listMatches(letter byte, u *User) bool {
	for _, e := range c.lists[letter] {
		if matchMask(e.Mask, u.Hostmask()) {
			return true
		}
	}
	return false
}

// IsBanned reports whether u matches a ban and no ban exception
func (c *Channel) IsBanned(u *User) bool {
	return c.listMatches('b', u) && !c.listMatches('e', u)
}

// HasMode reports whether a simple or parameter mode is set
func (c *Channel) HasMode(letter byte) bool {
	if c.modes[letter] {
		return true
	}
	_, ok := c.params[letter]
	return ok
}

// ModeParam returns the parameter of a parameter mode
func (c *Channel) ModeParam(letter byte) (string, bool) {
	v, ok := c.params[letter]
	return v, ok
}

// ModeString renders the channel modes and their parameters. The key is
// replaced by "<key>" unless showKey is set.
func (c *Channel) ModeString(showKey bool) (string, []string) {
	letters := make([]byte, 0, len(c.modes)+len(c.params))
	for l, on := range c.modes {
		if on {
			letters = append(letters, l)
		}
	}
	for l := range c.params {
		letters = append(letters, l)
	}
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })

	var params []string
	for _, l := range letters {
		if v, ok := c.params[l]; ok {
			if l == 'k' && !showKey {
				v = "<key>"
			}
			params = append(params, v)
		}
	}
	return "+" + string(letters), params
}

// Send delivers msg to every member except one
func (c *Channel) Send(msg ircmsg.Message, except *User) {
	for u := range c.members {
		if u != except {
			u.Send(msg)
		}
	}
}

// Channel looks up a channel by name
func (s *Server) Channel(name string) (*Channel, bool) {
	ch, ok := s.channels[FoldName(name)]
	return ch, ok
}

// Channels returns every channel, sorted by name
func (s *Server) Channels() []*Channel {
	out := make([]*Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// Join adds u to the named channel, creating it if needed. The user that
// creates a channel is granted op. Joining a channel twice returns the
// existing membership.
func (s *Server) Join(u *User, name string) (*Membership, error) {
	ch, exists := s.Channel(name)
	if !exists {
		if !isValidChannelName(name) {
			return nil, ErrNoSuchChannel
		}
		ch = newChannel(name)
		s.channels[ch.key] = ch
		metrics.Channels.Set(float64(len(s.channels)))
	}
	if m, ok := ch.members[u]; ok {
		return m, nil
	}

	m := &Membership{
		User:     u,
		Channel:  ch,
		Joined:   time.Now(),
		prefixes: make(map[byte]bool),
	}
	ch.members[u] = m
	u.channels[ch] = m
	if !exists {
		m.SetPrefix('o', true)
	}

	zap.S().Debugw("joined channel", "nick", u.Nick, "channel", ch.Name, "rank", m.rank)
	return m, nil
}

// Leave removes u from the channel and destroys the channel once it has no
// members left. It reports whether a membership was removed.
func (s *Server) Leave(ch *Channel, u *User) bool {
	if _, ok := ch.members[u]; !ok {
		return false
	}
	delete(ch.members, u)
	delete(u.channels, ch)

	if len(ch.members) == 0 {
		delete(s.channels, ch.key)
		metrics.Channels.Set(float64(len(s.channels)))
		zap.S().Debugw("channel destroyed", "channel", ch.Name)
	}
	return true
}

// isValidChannelName checks if a channel name is valid
func isValidChannelName(name string) bool {
	if len(name) < 2 || len(name) > 64 {
		return false
	}

	// Must start with # or &
	if name[0] != '#' && name[0] != '&' {
		return false
	}

	// Can't contain spaces, ASCII 7 (bell), commas, colons, or NULL bytes
	return !strings.ContainsAny(name, " ,:\x00\x07")
}
