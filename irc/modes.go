package irc

import (
	"fmt"
	"sort"
)

// ModeScope tells user modes from channel modes
type ModeScope int

const (
	ScopeUser ModeScope = iota
	ScopeChannel
)

func (s ModeScope) String() string {
	if s == ScopeUser {
		return "user"
	}
	return "channel"
}

// ModeKind describes how a mode stores its value
type ModeKind int

const (
	KindSimple ModeKind = iota // on or off
	KindParam                  // on with a single parameter
	KindList                   // ordered list of entries
	KindPrefix                 // grants a rank to a member
)

// ModeDefinition describes a mode the server understands
type ModeDefinition struct {
	Name    string
	Letter  byte
	Scope   ModeScope
	Kind    ModeKind
	MinRank Rank // rank needed to change a channel mode

	// ParamOnUnset is set for parameter modes that take a parameter when removed
	ParamOnUnset bool
	// RemoveOnly marks user modes that MODE can only remove
	RemoveOnly   bool

	// Replies for list queries
	ListReply, EndOfListReply int
	ListName                  string
}

// NeedsParam reports whether a change in the given direction consumes a parameter
func (d *ModeDefinition) NeedsParam(adding bool) bool {
	switch d.Kind {
	case KindList, KindPrefix:
		return true
	case KindParam:
		return adding || d.ParamOnUnset
	}
	return false
}

// ModeRegistry indexes mode definitions by scope, letter and name
type ModeRegistry struct {
	byLetter map[ModeScope]map[byte]*ModeDefinition
	byName   map[ModeScope]map[string]*ModeDefinition
}

// NewModeRegistry returns a registry holding the built-in modes
func NewModeRegistry() *ModeRegistry {
	r := &ModeRegistry{
		byLetter: map[ModeScope]map[byte]*ModeDefinition{ScopeUser: {}, ScopeChannel: {}},
		byName:   map[ModeScope]map[string]*ModeDefinition{ScopeUser: {}, ScopeChannel: {}},
	}
	for _, def := range builtinModes() {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a mode definition
func (r *ModeRegistry) Register(def *ModeDefinition) error {
	if _, ok := r.byLetter[def.Scope][def.Letter]; ok {
		return fmt.Errorf("%s mode %c already registered", def.Scope, def.Letter)
	}
	if _, ok := r.byName[def.Scope][def.Name]; ok {
		return fmt.Errorf("%s mode %q already registered", def.Scope, def.Name)
	}
	r.byLetter[def.Scope][def.Letter] = def
	r.byName[def.Scope][def.Name] = def
	return nil
}

// Lookup finds a mode by letter
func (r *ModeRegistry) Lookup(scope ModeScope, letter byte) (*ModeDefinition, bool) {
	def, ok := r.byLetter[scope][letter]
	return def, ok
}

// ByName finds a mode by name
func (r *ModeRegistry) ByName(scope ModeScope, name string) (*ModeDefinition, bool) {
	def, ok := r.byName[scope][name]
	return def, ok
}

// Letters returns the registered letters of a scope, sorted
func (r *ModeRegistry) Letters(scope ModeScope) string {
	letters := make([]byte, 0, len(r.byLetter[scope]))
	for l := range r.byLetter[scope] {
		letters = append(letters, l)
	}
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })
	return string(letters)
}

func builtinModes() []*ModeDefinition {
	defs := []*ModeDefinition{
		{Name: "ban", Letter: 'b', Scope: ScopeChannel, Kind: KindList, MinRank: RankHalfop,
			ListReply: RPL_BANLIST, EndOfListReply: RPL_ENDOFBANLIST, ListName: "channel ban list"},
		{Name: "banexception", Letter: 'e', Scope: ScopeChannel, Kind: KindList, MinRank: RankHalfop,
			ListReply: RPL_EXCEPTLIST, EndOfListReply: RPL_ENDOFEXCEPT, ListName: "channel exception list"},
		{Name: "invex", Letter: 'I', Scope: ScopeChannel, Kind: KindList, MinRank: RankHalfop,
			ListReply: RPL_INVITELIST, EndOfListReply: RPL_ENDOFINVITE, ListName: "channel invite exception list"},

		{Name: "key", Letter: 'k', Scope: ScopeChannel, Kind: KindParam, MinRank: RankHalfop, ParamOnUnset: true},
		{Name: "limit", Letter: 'l', Scope: ScopeChannel, Kind: KindParam, MinRank: RankHalfop},

		{Name: "inviteonly", Letter: 'i', Scope: ScopeChannel, Kind: KindSimple, MinRank: RankHalfop},
		{Name: "moderated", Letter: 'm', Scope: ScopeChannel, Kind: KindSimple, MinRank: RankHalfop},
		{Name: "noextmsg", Letter: 'n', Scope: ScopeChannel, Kind: KindSimple, MinRank: RankHalfop},
		{Name: "private", Letter: 'p', Scope: ScopeChannel, Kind: KindSimple, MinRank: RankHalfop},
		{Name: "secret", Letter: 's', Scope: ScopeChannel, Kind: KindSimple, MinRank: RankHalfop},
		{Name: "topiclock", Letter: 't', Scope: ScopeChannel, Kind: KindSimple, MinRank: RankHalfop},

		{Name: "invisible", Letter: 'i', Scope: ScopeUser, Kind: KindSimple},
		{Name: "wallops", Letter: 'w', Scope: ScopeUser, Kind: KindSimple},
		{Name: "oper", Letter: 'o', Scope: ScopeUser, Kind: KindSimple, RemoveOnly: true},
	}

	// Rank needed to grant or remove each prefix
	prefixMin := map[byte]Rank{'v': RankHalfop, 'h': RankOp, 'o': RankOp, 'a': RankOwner, 'q': RankOwner}
	for _, p := range prefixModes {
		defs = append(defs, &ModeDefinition{
			Name:    p.Name,
			Letter:  p.Letter,
			Scope:   ScopeChannel,
			Kind:    KindPrefix,
			MinRank: prefixMin[p.Letter],
		})
	}
	return defs
}
