package irc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const registrationTimeout = 60 * time.Second

// Client is the connection front end. It frames lines, handles the
// registration sequence (PASS, NICK, USER) and hands every later line to the
// dispatcher on the serialization point.
type Client struct {
	id        string
	conn      net.Conn
	server    *Server
	host      string
	writer    *bufio.Writer
	writeLock sync.Mutex

	// Registration state, owned by the serialization point
	nick        string
	username    string
	realname    string
	password    string
	negotiating bool
	caps        capSet
	user        *User
}

func newClient(s *Server, conn net.Conn) *Client {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		server: s,
		host:   host,
		writer: bufio.NewWriter(conn),
		caps:   make(capSet),
	}
}

// WriteLine writes a single line followed by CRLF
func (c *Client) WriteLine(line string) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	if _, err := c.writer.WriteString(line + "\r\n"); err != nil {
		return err
	}
	return c.writer.Flush()
}

// Close closes the underlying connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// serve reads lines until the connection closes
func (c *Client) serve(ctx context.Context) {
	log := zap.S().With("client", c.id, "host", c.host)
	log.Infow("new client connected")

	defer func() {
		err := c.server.Do(context.Background(), func() {
			if c.user != nil {
				c.server.Disconnect(c.user, "Connection closed")
			}
		})
		if err != nil && !errors.Is(err, ErrServerClosed) {
			log.Warnw("cleanup failed", "error", err)
		}
		c.conn.Close()
	}()

	textReader := textproto.NewReader(bufio.NewReader(c.conn))
	c.conn.SetReadDeadline(time.Now().Add(registrationTimeout))

	for {
		line, err := textReader.ReadLine()
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				log.Debugw("read failed", "error", err)
			}
			log.Infow("client disconnected")
			return
		}
		if line == "" {
			continue
		}

		log.Debugw("<=", "line", line)
		if err := c.server.Do(ctx, func() { c.handleLine(line) }); err != nil {
			if errors.Is(err, ErrServerClosed) || ctx.Err() != nil {
				return
			}
			log.Errorw("failed to handle line", "error", err)
		}
	}
}

// handleLine runs on the serialization point
func (c *Client) handleLine(line string) {
	msg, err := ircmsg.ParseLine(line)
	if err != nil {
		zap.S().Debugw("malformed line", "client", c.id, "error", err)
		return
	}
	command := strings.ToUpper(msg.Command)

	if c.user != nil {
		switch command {
		case "PASS", "USER":
			c.server.Notify(c.user, ERR_ALREADYREGISTERED, "You may not reregister")
		case "CAP":
			c.handleCAP(msg.Params)
		default:
			c.server.Execute(c.user, command, msg.Params)
		}
		return
	}

	switch command {
	case "PASS":
		if len(msg.Params) < 1 {
			c.sendNumeric(ERR_NEEDMOREPARAMS, "PASS", "Not enough parameters")
			return
		}
		c.password = msg.Params[0]
	case "NICK":
		c.handleNick(msg.Params)
	case "USER":
		if len(msg.Params) < 4 {
			c.sendNumeric(ERR_NEEDMOREPARAMS, "USER", "Not enough parameters")
			return
		}
		c.username = msg.Params[0]
		c.realname = msg.Params[3]
	case "PING":
		if len(msg.Params) > 0 {
			c.send(ircmsg.MakeMessage(nil, c.server.Name(), "PONG", c.server.Name(), msg.Params[0]))
		}
	case "CAP":
		c.handleCAP(msg.Params)
	case "PONG":
	case "QUIT":
		c.Close()
		return
	default:
		c.sendNumeric(ERR_NOTREGISTERED, "You have not registered")
		return
	}

	c.tryRegister()
}

func (c *Client) handleNick(params []string) {
	if len(params) < 1 || params[0] == "" {
		c.sendNumeric(ERR_NONICKNAMEGIVEN, "No nickname given")
		return
	}
	nick := params[0]
	if !isValidNickname(nick, c.server.config.Limits.NickLen) {
		c.sendNumeric(ERR_ERRONEUSNICKNAME, nick, "Erroneous nickname")
		return
	}
	if _, taken := c.server.User(nick); taken {
		c.sendNumeric(ERR_NICKNAMEINUSE, nick, "Nickname is already in use")
		return
	}
	c.nick = nick
}

func (c *Client) tryRegister() {
	if c.nick == "" || c.username == "" || c.negotiating {
		return
	}

	if want := c.server.config.Server.Password; want != "" && c.password != want {
		c.sendNumeric(ERR_PASSWDMISMATCH, "Password incorrect")
		c.Close()
		return
	}

	u, err := c.server.Connect(c.nick, c.username, c.host, c)
	if err != nil {
		if errors.Is(err, ErrNicknameInUse) {
			c.sendNumeric(ERR_NICKNAMEINUSE, c.nick, "Nickname is already in use")
		} else {
			c.sendNumeric(ERR_ERRONEUSNICKNAME, c.nick, "Erroneous nickname")
		}
		c.nick = ""
		return
	}
	u.Realname = c.realname
	u.caps = c.caps
	c.user = u

	c.conn.SetReadDeadline(time.Time{})
	c.server.welcome(u)
}

func (c *Client) send(msg ircmsg.Message) {
	line, err := msg.Line()
	if err != nil {
		zap.S().Errorw("failed to encode message", "client", c.id, "error", err)
		return
	}
	if err := c.WriteLine(strings.TrimRight(line, "\r\n")); err != nil {
		zap.S().Debugw("write failed", "client", c.id, "error", err)
	}
}

// sendNumeric sends a numeric before registration completes
func (c *Client) sendNumeric(code int, params ...string) {
	nick := c.nick
	if nick == "" {
		nick = "*"
	}
	c.send(ircmsg.MakeMessage(nil, c.server.Name(), fmt.Sprintf("%03d", code), append([]string{nick}, params...)...))
}
