package admind

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/presbrey/ircd/irc"
	"github.com/presbrey/ircd/irc/modlog"
)

// ChannelInfo summarizes a channel
type ChannelInfo struct {
	Name    string    `json:"name"`
	Members int       `json:"members"`
	Modes   string    `json:"modes"`
	Created time.Time `json:"created"`
}

// MemberInfo describes one membership
type MemberInfo struct {
	Nick     string `json:"nick"`
	Prefixes string `json:"prefixes,omitempty"`
	Rank     string `json:"rank"`
}

// ChannelDetail is a channel with its members and list modes
type ChannelDetail struct {
	ChannelInfo
	MemberList []MemberInfo               `json:"member_list"`
	Lists      map[string][]irc.ListEntry `json:"lists"`
}

// UnloadRequest is the body of POST /api/modules/unload
type UnloadRequest struct {
	Module string `json:"module" validate:"required"`
}

// HistoryRequest binds GET /api/modlog/:channel
type HistoryRequest struct {
	Channel string `param:"channel" validate:"required"`
	Limit   int    `query:"limit" validate:"min=1,max=1000"`
}

func (a *Server) handleStats(c echo.Context) error {
	var stats irc.Stats
	if err := a.do(c, func() { stats = a.irc.Stats() }); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (a *Server) handleChannels(c echo.Context) error {
	var out []ChannelInfo
	if err := a.do(c, func() {
		for _, ch := range a.irc.Channels() {
			out = append(out, channelInfo(ch))
		}
	}); err != nil {
		return err
	}
	if out == nil {
		out = []ChannelInfo{}
	}
	return c.JSON(http.StatusOK, out)
}

func (a *Server) handleChannel(c echo.Context) error {
	name := channelName(c.Param("name"))

	var detail *ChannelDetail
	if err := a.do(c, func() {
		ch, ok := a.irc.Channel(name)
		if !ok {
			return
		}
		detail = &ChannelDetail{ChannelInfo: channelInfo(ch), Lists: make(map[string][]irc.ListEntry)}
		for _, m := range ch.Members() {
			detail.MemberList = append(detail.MemberList, MemberInfo{
				Nick:     m.User.Nick,
				Prefixes: m.Prefixes(),
				Rank:     m.Rank().String(),
			})
		}
		modes := a.irc.Modes()
		for _, l := range modes.Letters(irc.ScopeChannel) {
			def, _ := modes.Lookup(irc.ScopeChannel, byte(l))
			if def.Kind == irc.KindList {
				detail.Lists[def.Name] = ch.List(def.Letter)
			}
		}
	}); err != nil {
		return err
	}

	if detail == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Channel not found")
	}
	return c.JSON(http.StatusOK, detail)
}

func (a *Server) handleRehash(c echo.Context) error {
	var rehashErr error
	if err := a.do(c, func() { rehashErr = a.irc.Rehash("") }); err != nil {
		return err
	}
	if rehashErr != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, rehashErr.Error())
	}

	zap.S().Infow("rehashed from admin API", "remote", c.RealIP())
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Configuration reloaded",
	})
}

func (a *Server) handleUnload(c echo.Context) error {
	var req UnloadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Bad request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var unloadErr error
	if err := a.do(c, func() { unloadErr = a.irc.UnloadModule(req.Module) }); err != nil {
		return err
	}
	if errors.Is(unloadErr, irc.ErrNoSuchModule) {
		return echo.NewHTTPError(http.StatusNotFound, "Module not loaded")
	}
	if unloadErr != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, unloadErr.Error())
	}

	zap.S().Infow("module unloaded from admin API", "module", req.Module, "remote", c.RealIP())
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Module unloaded",
	})
}

func (a *Server) handleModlog(c echo.Context) error {
	req := HistoryRequest{Limit: 50}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Bad request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	channel := channelName(req.Channel)

	var (
		entries  []modlog.Entry
		loaded   bool
		queryErr error
	)
	if err := a.do(c, func() {
		mod, ok := a.irc.Module(modlog.Name)
		if !ok {
			return
		}
		loaded = true
		entries, queryErr = mod.(*modlog.Module).History(channel, req.Limit)
	}); err != nil {
		return err
	}

	if !loaded {
		return echo.NewHTTPError(http.StatusNotFound, "Module not loaded")
	}
	if queryErr != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, queryErr.Error())
	}
	if entries == nil {
		entries = []modlog.Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

func channelInfo(ch *irc.Channel) ChannelInfo {
	modes, _ := ch.ModeString(false)
	return ChannelInfo{
		Name:    ch.Name,
		Members: ch.MemberCount(),
		Modes:   modes,
		Created: ch.Created,
	}
}

// channelName accepts a path segment with or without the leading '#'
func channelName(segment string) string {
	if unescaped, err := url.PathUnescape(segment); err == nil {
		segment = unescaped
	}
	if segment != "" && segment[0] != '#' && segment[0] != '&' {
		segment = "#" + segment
	}
	return segment
}
