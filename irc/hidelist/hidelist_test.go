package hidelist_test

import (
	"testing"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presbrey/ircd/irc"
	"github.com/presbrey/ircd/irc/config"
	"github.com/presbrey/ircd/irc/hidelist"
)

type conn struct{ lines []string }

func (c *conn) WriteLine(line string) error {
	c.lines = append(c.lines, line)
	return nil
}

func (c *conn) Close() error { return nil }

// numerics returns the parameters of every reply with the given code
func (c *conn) numerics(t *testing.T, code string) [][]string {
	t.Helper()
	var out [][]string
	for _, line := range c.lines {
		msg, err := ircmsg.ParseLine(line)
		require.NoError(t, err)
		if msg.Command == code {
			out = append(out, msg.Params)
		}
	}
	return out
}

type fixture struct {
	server  *irc.Server
	module  *hidelist.Module
	channel *irc.Channel
}

func setup(t *testing.T, tags ...config.Tag) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Tags = map[string][]config.Tag{"hidelist": tags}

	s := irc.NewServer(cfg)
	m := hidelist.New().(*hidelist.Module)
	require.NoError(t, s.LoadModule(m))

	f := &fixture{server: s, module: m}
	founder, _ := f.user(t, "founder")
	ms, err := s.Join(founder, "#chan")
	require.NoError(t, err)
	f.channel = ms.Channel
	return f
}

func (f *fixture) user(t *testing.T, nick string) (*irc.User, *conn) {
	t.Helper()
	c := &conn{}
	u, err := f.server.Connect(nick, "~"+nick, "host.test", c)
	require.NoError(t, err)
	return u, c
}

// member joins nick to the channel holding the given prefix letters
func (f *fixture) member(t *testing.T, nick string, prefixes ...byte) (*irc.User, *conn) {
	t.Helper()
	u, c := f.user(t, nick)
	m, err := f.server.Join(u, f.channel.Name)
	require.NoError(t, err)
	for _, p := range prefixes {
		m.SetPrefix(p, true)
	}
	return u, c
}

func (f *fixture) view(t *testing.T, u *irc.User, mode string) irc.ModeOutcome {
	t.Helper()
	return f.change(t, u, mode, "", true)
}

func (f *fixture) change(t *testing.T, u *irc.User, mode, param string, adding bool) irc.ModeOutcome {
	t.Helper()
	def, ok := f.server.Modes().ByName(irc.ScopeChannel, mode)
	require.True(t, ok)
	return f.server.ApplyMode(&irc.ModeChange{Source: u, Channel: f.channel, Mode: def, Param: param, Adding: adding})
}

func TestRankZeroAllowsAnyMember(t *testing.T) {
	f := setup(t, config.Tag{"mode": "ban", "rank": 0})

	member, _ := f.member(t, "member")
	assert.Equal(t, irc.ModeListed, f.view(t, member, "ban"))

	outsider, c := f.user(t, "outsider")
	assert.Equal(t, irc.ModeDenied, f.view(t, outsider, "ban"))

	denied := c.numerics(t, "482")
	require.Len(t, denied, 1)
	assert.Equal(t, []string{"outsider", "#chan", "You do not have access to view the ban list"}, denied[0])
	assert.Empty(t, c.numerics(t, "368"))
}

func TestDefaultRankIsHalfop(t *testing.T) {
	f := setup(t, config.Tag{"mode": "invex"})

	rank, ok := f.module.MinRank("invex")
	require.True(t, ok)
	assert.Equal(t, irc.RankHalfop, rank)

	voice, c := f.member(t, "voice", 'v')
	assert.Equal(t, irc.ModeDenied, f.view(t, voice, "invex"))
	assert.Len(t, c.numerics(t, "482"), 1)

	halfop, c := f.member(t, "halfop", 'h')
	assert.Equal(t, irc.ModeListed, f.view(t, halfop, "invex"))
	assert.Len(t, c.numerics(t, "347"), 1)

	outsider, _ := f.user(t, "outsider")
	assert.Equal(t, irc.ModeListed, f.view(t, outsider, "ban"), "unguarded lists stay visible")
}

func TestRankByName(t *testing.T) {
	f := setup(t, config.Tag{"mode": "banexception", "rank": "op"})

	rank, _ := f.module.MinRank("banexception")
	assert.Equal(t, irc.RankOp, rank)

	halfop, _ := f.member(t, "halfop", 'h')
	assert.Equal(t, irc.ModeDenied, f.view(t, halfop, "banexception"))

	op, _ := f.member(t, "op", 'o')
	assert.Equal(t, irc.ModeListed, f.view(t, op, "banexception"))
}

func TestAuspexBypassesGuard(t *testing.T) {
	f := setup(t, config.Tag{"mode": "ban", "rank": "owner"})

	oper, c := f.user(t, "oper")
	oper.GrantPrivilege(irc.PrivAuspex)
	assert.Equal(t, irc.ModeListed, f.view(t, oper, "ban"))
	assert.Len(t, c.numerics(t, "368"), 1)
}

func TestSettingIsNotGuarded(t *testing.T) {
	f := setup(t, config.Tag{"mode": "ban", "rank": "owner"})

	op, _ := f.member(t, "op", 'o')
	assert.Equal(t, irc.ModeDenied, f.view(t, op, "ban"))
	assert.Equal(t, irc.ModeApplied, f.change(t, op, "ban", "troll", true))
	assert.Equal(t, irc.ModeApplied, f.change(t, op, "ban", "troll", false))
	assert.Empty(t, f.channel.List('b'))
}

func TestReconfigureTakesEffectImmediately(t *testing.T) {
	f := setup(t, config.Tag{"mode": "ban", "rank": "owner"})
	member, _ := f.member(t, "member")
	require.Equal(t, irc.ModeDenied, f.view(t, member, "ban"))

	cfg := f.server.Config()
	cfg.Tags["hidelist"] = []config.Tag{{"mode": "ban", "rank": 0}}
	require.NoError(t, f.module.ReadConfig(cfg))

	assert.Equal(t, irc.ModeListed, f.view(t, member, "ban"))
	assert.Len(t, f.server.Watchers(irc.ScopeChannel, "ban"), 1, "the old watcher was replaced, not stacked")

	cfg.Tags["hidelist"] = nil
	require.NoError(t, f.module.ReadConfig(cfg))
	assert.Empty(t, f.server.Watchers(irc.ScopeChannel, "ban"))
	_, ok := f.module.MinRank("ban")
	assert.False(t, ok)
}

func TestInvalidConfigKeepsOldSet(t *testing.T) {
	f := setup(t, config.Tag{"mode": "ban", "rank": "owner"})
	cfg := f.server.Config()

	for _, tags := range [][]config.Tag{
		{{"mode": "ban", "rank": 0}, {"mode": "key"}},
		{{"mode": "nosuchmode"}},
		{{"rank": 0}},
	} {
		cfg.Tags["hidelist"] = tags
		assert.Error(t, f.module.ReadConfig(cfg))

		rank, ok := f.module.MinRank("ban")
		require.True(t, ok)
		assert.Equal(t, irc.RankOwner, rank)
		assert.Len(t, f.server.Watchers(irc.ScopeChannel, "ban"), 1)
	}

	member, _ := f.member(t, "member")
	assert.Equal(t, irc.ModeDenied, f.view(t, member, "ban"))
}

func TestNegativeRankClampsToZero(t *testing.T) {
	f := setup(t, config.Tag{"mode": "ban", "rank": -5})

	rank, _ := f.module.MinRank("ban")
	assert.Equal(t, irc.RankNone, rank)
}

func TestUnloadRemovesGuard(t *testing.T) {
	f := setup(t, config.Tag{"mode": "ban", "rank": "owner"})
	outsider, _ := f.user(t, "outsider")
	require.Equal(t, irc.ModeDenied, f.view(t, outsider, "ban"))

	require.NoError(t, f.server.UnloadModule(hidelist.Name))
	assert.Equal(t, irc.ModeListed, f.view(t, outsider, "ban"))
}

func TestRegisteredByName(t *testing.T) {
	assert.Contains(t, irc.AvailableModules(), hidelist.Name)

	cfg := config.Default()
	cfg.Modules = []string{hidelist.Name}
	s := irc.NewServer(cfg)
	require.NoError(t, s.LoadModules())

	_, ok := s.Module(hidelist.Name)
	assert.True(t, ok)
}
