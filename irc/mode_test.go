package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelModeBroadcastIsAggregated(t *testing.T) {
	s := newTestServer(t)
	op, opRec := connect(t, s, "op")
	alice, aliceRec := connect(t, s, "alice")
	ch := join(t, s, op, "#chan").Channel
	join(t, s, alice, "#chan")

	assert.Equal(t, CmdSuccess, s.Execute(op, "MODE", []string{"#chan", "+mo-n", "alice"}))
	assert.True(t, ch.HasMode('m'))
	assert.False(t, ch.HasMode('n'))
	rank, _ := ch.Rank(alice)
	assert.Equal(t, RankOp, rank)

	for _, rec := range []*recorder{opRec, aliceRec} {
		modes := rec.find(t, "MODE")
		require.Len(t, modes, 1)
		assert.Equal(t, op.Hostmask(), modes[0].Source)
		assert.Equal(t, []string{"#chan", "+mo-n", "alice"}, modes[0].Params)
	}
}

func TestChannelModeQuery(t *testing.T) {
	s := newTestServer(t)
	op, opRec := connect(t, s, "op")
	outsider, outRec := connect(t, s, "outsider")
	join(t, s, op, "#chan")
	require.Equal(t, CmdSuccess, s.Execute(op, "MODE", []string{"#chan", "+kl", "secret", "10"}))

	s.Execute(op, "MODE", []string{"#chan"})
	is := opRec.find(t, "324")
	require.Len(t, is, 1)
	assert.Equal(t, []string{"op", "#chan", "+klnt", "secret", "10"}, is[0].Params)
	assert.Len(t, opRec.find(t, "329"), 1)

	s.Execute(outsider, "MODE", []string{"#chan"})
	is = outRec.find(t, "324")
	require.Len(t, is, 1)
	assert.Equal(t, "<key>", is[0].Params[3])
}

func TestModeNoSuchChannel(t *testing.T) {
	s := newTestServer(t)
	u, rec := connect(t, s, "alice")

	assert.Equal(t, CmdFailure, s.Execute(u, "MODE", []string{"#nowhere", "+m"}))
	assert.Len(t, rec.find(t, "403"), 1)
}

func TestUnknownModeLetter(t *testing.T) {
	s := newTestServer(t)
	op, rec := connect(t, s, "op")
	ch := join(t, s, op, "#chan").Channel

	assert.Equal(t, CmdSuccess, s.Execute(op, "MODE", []string{"#chan", "+Zm"}))
	unknown := rec.find(t, "472")
	require.Len(t, unknown, 1)
	assert.Equal(t, "Z", unknown[0].Params[1])
	assert.True(t, ch.HasMode('m'), "remaining letters still apply")
}

func TestModeDeniedBelowMinRank(t *testing.T) {
	s := newTestServer(t)
	op, _ := connect(t, s, "op")
	peon, rec := connect(t, s, "peon")
	ch := join(t, s, op, "#chan").Channel
	join(t, s, peon, "#chan")

	assert.Equal(t, CmdFailure, s.Execute(peon, "MODE", []string{"#chan", "+m"}))
	assert.False(t, ch.HasMode('m'))
	assert.Len(t, rec.find(t, "482"), 1)
	assert.Empty(t, rec.find(t, "MODE"))
}

func TestMemberMayDropOwnPrefix(t *testing.T) {
	s := newTestServer(t)
	op, _ := connect(t, s, "op")
	voice, rec := connect(t, s, "voice")
	ch := join(t, s, op, "#chan").Channel
	join(t, s, voice, "#chan").SetPrefix('v', true)

	assert.Equal(t, CmdFailure, s.Execute(voice, "MODE", []string{"#chan", "+v", "op"}))

	assert.Equal(t, CmdSuccess, s.Execute(voice, "MODE", []string{"#chan", "-v", "voice"}))
	rank, _ := ch.Rank(voice)
	assert.Equal(t, RankNone, rank)
	assert.Len(t, rec.find(t, "MODE"), 1)
}

func TestPrefixChangeNeedsHigherRank(t *testing.T) {
	s := newTestServer(t)
	founder, _ := connect(t, s, "founder")
	alice, _ := connect(t, s, "alice")
	bob, bobRec := connect(t, s, "bob")
	carol, _ := connect(t, s, "carol")

	ch := join(t, s, founder, "#chan").Channel
	aliceM := join(t, s, alice, "#chan")
	aliceM.SetPrefix('o', true)
	join(t, s, bob, "#chan").SetPrefix('o', true)
	carolM := join(t, s, carol, "#chan")
	carolM.SetPrefix('a', true)
	carolM.SetPrefix('o', true)

	// Equal rank
	assert.Equal(t, CmdFailure, s.Execute(bob, "MODE", []string{"#chan", "-o", "alice"}))
	assert.True(t, aliceM.HasPrefix('o'))
	assert.Equal(t, RankOp, aliceM.Rank())
	assert.Equal(t, CmdFailure, s.Execute(bob, "MODE", []string{"#chan", "+v", "alice"}))
	assert.False(t, aliceM.HasPrefix('v'))

	// Higher rank
	assert.Equal(t, CmdFailure, s.Execute(bob, "MODE", []string{"#chan", "-o", "carol"}))
	assert.True(t, carolM.HasPrefix('o'))
	assert.Equal(t, RankAdmin, carolM.Rank())

	denied := bobRec.find(t, "482")
	require.Len(t, denied, 3)
	assert.Equal(t, "#chan", denied[0].Params[1])
	assert.Empty(t, bobRec.find(t, "MODE"))

	// An owner outranks both
	founderM, _ := ch.Membership(founder)
	founderM.SetPrefix('q', true)
	assert.Equal(t, CmdSuccess, s.Execute(founder, "MODE", []string{"#chan", "-o", "alice"}))
	assert.Equal(t, RankNone, aliceM.Rank())

	// The override privilege skips the comparison, not the minimum rank
	bob.GrantPrivilege(PrivOverride)
	assert.Equal(t, CmdSuccess, s.Execute(bob, "MODE", []string{"#chan", "-o", "carol"}))
	assert.False(t, carolM.HasPrefix('o'))
}

func TestPrefixModeTargets(t *testing.T) {
	s := newTestServer(t)
	op, rec := connect(t, s, "op")
	connect(t, s, "stranger")
	join(t, s, op, "#chan")

	s.Execute(op, "MODE", []string{"#chan", "+o", "ghost"})
	assert.Len(t, rec.find(t, "401"), 1)

	s.Execute(op, "MODE", []string{"#chan", "+o", "stranger"})
	assert.Len(t, rec.find(t, "441"), 1)
	assert.Empty(t, rec.find(t, "MODE"))
}

func TestBanListQueryAndFull(t *testing.T) {
	s := newTestServer(t)
	s.Config().Limits.MaxList = 1
	op, rec := connect(t, s, "op")
	ch := join(t, s, op, "#chan").Channel

	assert.Equal(t, CmdSuccess, s.Execute(op, "MODE", []string{"#chan", "+b", "troll"}))
	require.Len(t, ch.List('b'), 1)
	assert.Equal(t, "troll!*@*", ch.List('b')[0].Mask)
	assert.Equal(t, op.Hostmask(), ch.List('b')[0].Setter)

	s.Execute(op, "MODE", []string{"#chan", "+b", "other"})
	assert.Len(t, rec.find(t, "478"), 1)
	assert.Len(t, ch.List('b'), 1)

	rec.reset()
	s.Execute(op, "MODE", []string{"#chan", "b"})
	entries := rec.find(t, "367")
	require.Len(t, entries, 1)
	assert.Equal(t, "troll!*@*", entries[0].Params[2])
	end := rec.find(t, "368")
	require.Len(t, end, 1)
	assert.Equal(t, "End of channel ban list", end[0].Params[2])
	assert.Empty(t, rec.find(t, "MODE"), "a list query is not broadcast")

	rec.reset()
	s.Execute(op, "MODE", []string{"#chan", "-b", "troll"})
	assert.Empty(t, ch.List('b'))
	modes := rec.find(t, "MODE")
	require.Len(t, modes, 1)
	assert.Equal(t, []string{"#chan", "-b", "troll!*@*"}, modes[0].Params)
}

func TestListQueryByNonMemberAllowedByDefault(t *testing.T) {
	s := newTestServer(t)
	op, _ := connect(t, s, "op")
	outsider, rec := connect(t, s, "outsider")
	join(t, s, op, "#chan")

	assert.Equal(t, CmdSuccess, s.Execute(outsider, "MODE", []string{"#chan", "+e"}))
	assert.Len(t, rec.find(t, "349"), 1)
}

func TestLimitMustBePositive(t *testing.T) {
	s := newTestServer(t)
	op, rec := connect(t, s, "op")
	ch := join(t, s, op, "#chan").Channel

	s.Execute(op, "MODE", []string{"#chan", "+l", "zero"})
	s.Execute(op, "MODE", []string{"#chan", "+l", "0"})
	_, ok := ch.ModeParam('l')
	assert.False(t, ok)
	assert.Empty(t, rec.find(t, "MODE"))

	s.Execute(op, "MODE", []string{"#chan", "+l", "007"})
	v, ok := ch.ModeParam('l')
	require.True(t, ok)
	assert.Equal(t, "7", v)
}

func TestKeyUnsetEchoesKey(t *testing.T) {
	s := newTestServer(t)
	op, rec := connect(t, s, "op")
	ch := join(t, s, op, "#chan").Channel

	s.Execute(op, "MODE", []string{"#chan", "+k", "secret"})
	rec.reset()
	s.Execute(op, "MODE", []string{"#chan", "-k", "whatever"})

	assert.False(t, ch.HasMode('k'))
	modes := rec.find(t, "MODE")
	require.Len(t, modes, 1)
	assert.Equal(t, []string{"#chan", "-k", "secret"}, modes[0].Params)
}

func TestJoinRestrictions(t *testing.T) {
	s := newTestServer(t)
	op, _ := connect(t, s, "op")
	alice, rec := connect(t, s, "alice")
	ch := join(t, s, op, "#chan").Channel

	s.Execute(op, "MODE", []string{"#chan", "+b", "alice"})
	assert.Equal(t, CmdFailure, s.Execute(alice, "JOIN", []string{"#chan"}))
	assert.Len(t, rec.find(t, "474"), 1)

	s.Execute(op, "MODE", []string{"#chan", "+e", "*!*@host.test"})
	s.Execute(op, "MODE", []string{"#chan", "+i"})
	assert.Equal(t, CmdFailure, s.Execute(alice, "JOIN", []string{"#chan"}))
	assert.Len(t, rec.find(t, "473"), 1)

	s.Execute(op, "MODE", []string{"#chan", "+I-i+k", "alice", "pw"})
	assert.Equal(t, CmdFailure, s.Execute(alice, "JOIN", []string{"#chan", "wrong"}))
	assert.Len(t, rec.find(t, "475"), 1)

	s.Execute(op, "MODE", []string{"#chan", "+l", "1"})
	assert.Equal(t, CmdFailure, s.Execute(alice, "JOIN", []string{"#chan", "pw"}))
	assert.Len(t, rec.find(t, "471"), 1)

	s.Execute(op, "MODE", []string{"#chan", "-l"})
	assert.Equal(t, CmdSuccess, s.Execute(alice, "JOIN", []string{"#chan", "pw"}))
	assert.True(t, ch.IsMember(alice))
	assert.Len(t, rec.find(t, "JOIN"), 1)
	assert.NotEmpty(t, rec.find(t, "353"))
	assert.Len(t, rec.find(t, "366"), 1)
}

func TestUserModes(t *testing.T) {
	s := newTestServer(t)
	alice, rec := connect(t, s, "alice")
	connect(t, s, "bob")

	assert.Equal(t, CmdSuccess, s.Execute(alice, "MODE", []string{"alice", "+iw"}))
	assert.Equal(t, "+iw", alice.ModeString())
	modes := rec.find(t, "MODE")
	require.Len(t, modes, 1)
	assert.Equal(t, []string{"alice", "+iw"}, modes[0].Params)

	assert.Equal(t, CmdFailure, s.Execute(alice, "MODE", []string{"alice", "+o"}))
	assert.False(t, alice.HasMode('o'), "oper cannot be set with MODE")

	assert.Equal(t, CmdFailure, s.Execute(alice, "MODE", []string{"bob", "+i"}))
	assert.Len(t, rec.find(t, "502"), 1)

	s.Execute(alice, "MODE", []string{"alice"})
	is := rec.find(t, "221")
	require.Len(t, is, 1)
	assert.Equal(t, "+iw", is[0].Params[1])

	s.Execute(alice, "MODE", []string{"alice", "+X"})
	assert.Len(t, rec.find(t, "501"), 1)
}

func TestFormatModes(t *testing.T) {
	modes, args := formatModes([]modeDelta{
		{adding: true, letter: 'o', param: "a"},
		{adding: true, letter: 'v', param: "b"},
		{adding: false, letter: 'm'},
		{adding: false, letter: 'b', param: "x!*@*"},
		{adding: true, letter: 't'},
	})
	assert.Equal(t, "+ov-mb+t", modes)
	assert.Equal(t, []string{"a", "b", "x!*@*"}, args)
}
