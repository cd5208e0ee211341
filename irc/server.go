package irc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"go.uber.org/zap"

	"github.com/presbrey/ircd/hooks"
	"github.com/presbrey/ircd/irc/config"
	"github.com/presbrey/ircd/irc/metrics"
)

// Server represents an IRC server instance.
//
// Users, channels, memberships, the command table and the loaded modules are
// owned by a single goroutine started with Run. Anything that touches them
// from another goroutine must go through Do. Command handlers, mode watchers
// and module hooks already run there and may use the state directly, but
// must never call Do themselves.
type Server struct {
	config    *config.Config
	startTime time.Time

	users    map[string]*User
	channels map[string]*Channel
	modes    *ModeRegistry
	watchers *hooks.Registry[*ModeWatcher]
	commands *CommandTable
	modules  []Module

	work      chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// Stats is a snapshot of the server state
type Stats struct {
	Name      string    `json:"name"`
	Network   string    `json:"network"`
	Users     int       `json:"users"`
	Channels  int       `json:"channels"`
	Modules   []string  `json:"modules"`
	Commands  int       `json:"commands"`
	StartTime time.Time `json:"start_time"`
	Uptime    string    `json:"uptime"`
}

// NewServer creates a server with the core commands and built-in modes
// registered. Modules are loaded separately.
func NewServer(cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{
		config:    cfg,
		startTime: time.Now(),
		users:     make(map[string]*User),
		channels:  make(map[string]*Channel),
		modes:     NewModeRegistry(),
		watchers:  hooks.NewRegistry[*ModeWatcher](),
		commands:  NewCommandTable(),
		work:      make(chan func()),
		done:      make(chan struct{}),
	}
	s.registerCoreCommands()
	return s
}

// Config returns the active configuration
func (s *Server) Config() *config.Config { return s.config }

// Name returns the server name used as the source of numerics
func (s *Server) Name() string { return s.config.Server.Name }

// Modes returns the mode registry
func (s *Server) Modes() *ModeRegistry { return s.modes }

// Commands returns the command table
func (s *Server) Commands() *CommandTable { return s.commands }

// Run processes work submitted through Do until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	defer s.closeOnce.Do(func() { close(s.done) })

	zap.S().Infow("serialization point started", "server", s.Name())
	for {
		select {
		case job := <-s.work:
			job()
		case <-ctx.Done():
			zap.S().Infow("serialization point stopped", "server", s.Name())
			return ctx.Err()
		}
	}
}

// Do runs fn on the serialization point and waits for it to finish. ctx only
// bounds the wait to be scheduled; once started, fn runs to completion.
// A panic in fn is recovered and returned as an error.
func (s *Server) Do(ctx context.Context, fn func()) error {
	var panicErr error
	finished := make(chan struct{})
	job := func() {
		defer close(finished)
		defer func() {
			if r := recover(); r != nil {
				zap.S().Errorw("PANIC on serialization point", "panic", r, "stack", string(debug.Stack()))
				panicErr = fmt.Errorf("panic: %v", r)
			}
		}()
		fn()
	}

	select {
	case s.work <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrServerClosed
	}
	<-finished
	return panicErr
}

// ListenAndServe listens on the configured address and serves clients until
// ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	zap.S().Infow("IRC server listening", "address", ln.Addr().String())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		go newClient(s, conn).serve(ctx)
	}
}

// User looks up a user by nickname
func (s *Server) User(nick string) (*User, bool) {
	u, ok := s.users[FoldName(nick)]
	return u, ok
}

// Users returns every user, sorted by nickname
func (s *Server) Users() []*User {
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return FoldName(out[i].Nick) < FoldName(out[j].Nick) })
	return out
}

// Connect registers a user under nick
func (s *Server) Connect(nick, username, host string, conn Conn) (*User, error) {
	if !isValidNickname(nick, s.config.Limits.NickLen) {
		return nil, fmt.Errorf("%s: %w", nick, ErrErroneousNickname)
	}
	if _, taken := s.User(nick); taken {
		return nil, fmt.Errorf("%s: %w", nick, ErrNicknameInUse)
	}

	u := newUser(s, nick, username, host, conn)
	s.users[FoldName(nick)] = u
	metrics.Users.Set(float64(len(s.users)))

	zap.S().Infow("user registered", "id", u.ID, "nick", nick, "host", host)
	return u, nil
}

// Disconnect removes u from every channel and from the server, telling
// everyone who shared a channel with it
func (s *Server) Disconnect(u *User, reason string) {
	if u.gone {
		return
	}

	quit := ircmsg.MakeMessage(nil, u.Hostmask(), "QUIT", reason)
	for _, peer := range s.commonUsers(u) {
		peer.Send(quit)
	}
	for _, ch := range u.Channels() {
		s.Leave(ch, u)
	}

	u.SendFrom("", "ERROR", fmt.Sprintf("Closing link: (%s@%s) [%s]", u.Username, u.Host, reason))
	u.gone = true
	delete(s.users, FoldName(u.Nick))
	metrics.Users.Set(float64(len(s.users)))

	if u.conn != nil {
		u.conn.Close()
	}
	zap.S().Infow("user disconnected", "id", u.ID, "nick", u.Nick, "reason", reason)
}

// Rename changes the nickname of u and tells everyone who shares a channel
func (s *Server) Rename(u *User, nick string) error {
	if !isValidNickname(nick, s.config.Limits.NickLen) {
		return fmt.Errorf("%s: %w", nick, ErrErroneousNickname)
	}
	if other, taken := s.User(nick); taken && other != u {
		return fmt.Errorf("%s: %w", nick, ErrNicknameInUse)
	}
	if nick == u.Nick {
		return nil
	}

	msg := ircmsg.MakeMessage(nil, u.Hostmask(), "NICK", nick)
	u.Send(msg)
	for _, peer := range s.commonUsers(u) {
		peer.Send(msg)
	}

	delete(s.users, FoldName(u.Nick))
	u.Nick = nick
	s.users[FoldName(nick)] = u
	return nil
}

// commonUsers returns every other user sharing at least one channel with u
func (s *Server) commonUsers(u *User) []*User {
	seen := map[*User]bool{u: true}
	var out []*User
	for ch := range u.channels {
		for peer := range ch.members {
			if !seen[peer] {
				seen[peer] = true
				out = append(out, peer)
			}
		}
	}
	return out
}

// Notify sends a numeric reply to u
func (s *Server) Notify(u *User, code int, params ...string) {
	nick := u.Nick
	if nick == "" {
		nick = "*"
	}
	u.Send(ircmsg.MakeMessage(nil, s.Name(), fmt.Sprintf("%03d", code), append([]string{nick}, params...)...))
}

// Execute dispatches a command from a registered user and sends the
// generic error replies for unknown commands and missing parameters
func (s *Server) Execute(u *User, command string, params []string) CmdResult {
	command = strings.ToUpper(command)
	result, err := s.commands.Dispatch(command, params, u)
	switch {
	case errors.Is(err, ErrUnknownCommand):
		s.Notify(u, ERR_UNKNOWNCOMMAND, command, "Unknown command")
	case err != nil:
		zap.S().Errorw("command failed", "command", command, "nick", u.Nick, "error", err)
	case result == CmdInvalid:
		s.Notify(u, ERR_NEEDMOREPARAMS, command, "Not enough parameters")
	}
	return result
}

// Stats returns a snapshot of the server state
func (s *Server) Stats() Stats {
	names := make([]string, 0, len(s.modules))
	for _, m := range s.modules {
		names = append(names, m.Name())
	}
	return Stats{
		Name:      s.Name(),
		Network:   s.config.Server.Network,
		Users:     len(s.users),
		Channels:  len(s.channels),
		Modules:   names,
		Commands:  len(s.commands.Names()),
		StartTime: s.startTime,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	}
}

// welcome sends the registration burst
func (s *Server) welcome(u *User) {
	network := s.config.Server.Network
	s.Notify(u, RPL_WELCOME, fmt.Sprintf("Welcome to the %s IRC Network %s", network, u.Hostmask()))
	s.Notify(u, RPL_YOURHOST, fmt.Sprintf("Your host is %s", s.Name()))
	s.Notify(u, RPL_CREATED, fmt.Sprintf("This server was created %s", s.startTime.Format(time.RFC1123)))
	s.Notify(u, RPL_MYINFO, s.Name(), "ircd", s.modes.Letters(ScopeUser), s.modes.Letters(ScopeChannel))
	s.Notify(u, RPL_ISUPPORT, append(s.isupport(), "are supported by this server")...)
}

func (s *Server) isupport() []string {
	var lists, always, onSet, simple []byte
	for _, l := range s.modes.Letters(ScopeChannel) {
		def, _ := s.modes.Lookup(ScopeChannel, byte(l))
		switch {
		case def.Kind == KindList:
			lists = append(lists, def.Letter)
		case def.Kind == KindParam && def.ParamOnUnset:
			always = append(always, def.Letter)
		case def.Kind == KindParam:
			onSet = append(onSet, def.Letter)
		case def.Kind == KindSimple:
			simple = append(simple, def.Letter)
		}
	}
	return []string{
		"NETWORK=" + s.config.Server.Network,
		"CASEMAPPING=rfc1459",
		"CHANTYPES=#&",
		"PREFIX=" + isupportPrefix(),
		fmt.Sprintf("CHANMODES=%s,%s,%s,%s", lists, always, onSet, simple),
		"NICKLEN=" + strconv.Itoa(s.config.Limits.NickLen),
		"KICKLEN=" + strconv.Itoa(s.config.Limits.KickLen),
		"MAXLIST=beI:" + strconv.Itoa(s.config.Limits.MaxList),
	}
}
