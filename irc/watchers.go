package irc

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/presbrey/ircd/hooks"
	"github.com/presbrey/ircd/irc/metrics"
)

// ModeChange is a single attempt to query, set or unset one mode
type ModeChange struct {
	Source  *User
	Target  *User // user whose modes change, or the member a prefix mode applies to
	Channel *Channel
	Mode    *ModeDefinition
	Param   string // hooks may rewrite it
	Adding  bool
}

// IsListQuery reports whether the change is a request to view a list mode
func (mc *ModeChange) IsListQuery() bool {
	return mc.Mode.Kind == KindList && mc.Param == ""
}

func (mc *ModeChange) targetName() string {
	if mc.Channel != nil {
		return mc.Channel.Name
	}
	if mc.Target != nil {
		return mc.Target.Nick
	}
	return "*"
}

// ModeWatcher intercepts attempts on one mode. Before may veto the attempt by
// returning an error whose text is reported to the requester. After runs
// once the mode was changed and cannot affect the outcome.
type ModeWatcher struct {
	Mode   string
	Scope  ModeScope
	Before func(mc *ModeChange) error
	After  func(mc *ModeChange)
}

func watcherKey(scope ModeScope, mode string) string {
	return scope.String() + ":" + mode
}

// ModeOutcome is the result of a single mode change attempt
type ModeOutcome int

const (
	ModeApplied   ModeOutcome = iota // the mode was changed
	ModeListed                       // a list was shown
	ModeUnchanged                    // allowed, but nothing changed
	ModeDenied                       // vetoed by a watcher or the access check
	ModeInvalid                      // malformed parameter or unknown target
)

func (o ModeOutcome) String() string {
	switch o {
	case ModeApplied:
		return "applied"
	case ModeListed:
		return "listed"
	case ModeUnchanged:
		return "unchanged"
	case ModeDenied:
		return "denied"
	}
	return "invalid"
}

// AddWatcher appends a watcher owned by owner
func (s *Server) AddWatcher(owner string, w *ModeWatcher) {
	s.watchers.Register(owner, watcherKey(w.Scope, w.Mode), w)
}

// ReplaceWatchers swaps every watcher owned by owner for ws in one step
func (s *Server) ReplaceWatchers(owner string, ws []*ModeWatcher) {
	entries := make([]hooks.Entry[*ModeWatcher], 0, len(ws))
	for _, w := range ws {
		entries = append(entries, hooks.Entry[*ModeWatcher]{Key: watcherKey(w.Scope, w.Mode), Hook: w})
	}
	s.watchers.Replace(owner, entries)
}

// RemoveWatchers drops every watcher owned by owner
func (s *Server) RemoveWatchers(owner string) int {
	return s.watchers.RemoveOwner(owner)
}

// Watchers returns the watchers bound to a mode, in invocation order
func (s *Server) Watchers(scope ModeScope, mode string) []*ModeWatcher {
	entries := s.watchers.Hooks(watcherKey(scope, mode))
	out := make([]*ModeWatcher, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Hook)
	}
	return out
}

// ApplyMode runs one mode change attempt through the watcher chain, the
// access check and the mutation. Replies to the requester are sent from here;
// broadcasting applied changes is left to the caller.
func (s *Server) ApplyMode(mc *ModeChange) ModeOutcome {
	outcome := s.applyMode(mc)
	metrics.ModeChanges.WithLabelValues(mc.Mode.Name, outcome.String()).Inc()
	return outcome
}

func (s *Server) applyMode(mc *ModeChange) ModeOutcome {
	if !s.prepareMode(mc) {
		return ModeInvalid
	}

	key := watcherKey(mc.Mode.Scope, mc.Mode.Name)
	err := s.watchers.RunUntil(key, func(e hooks.Entry[*ModeWatcher]) error {
		if e.Hook.Before == nil {
			return nil
		}
		return e.Hook.Before(mc)
	})
	if err != nil {
		s.denyMode(mc, err)
		return ModeDenied
	}

	if mc.IsListQuery() {
		s.sendList(mc)
		return ModeListed
	}
	if !s.checkModeAccess(mc) {
		return ModeDenied
	}
	if !s.mutateMode(mc) {
		return ModeUnchanged
	}

	s.watchers.RunAll(key, func(e hooks.Entry[*ModeWatcher]) error {
		if e.Hook.After != nil {
			e.Hook.After(mc)
		}
		return nil
	})
	return ModeApplied
}

// prepareMode normalizes the parameter and resolves prefix targets
func (s *Server) prepareMode(mc *ModeChange) bool {
	switch mc.Mode.Kind {
	case KindPrefix:
		if mc.Param == "" {
			return false
		}
		target, ok := s.User(mc.Param)
		if !ok {
			s.Notify(mc.Source, ERR_NOSUCHNICK, mc.Param, "No such nick/channel")
			return false
		}
		if !mc.Channel.IsMember(target) {
			s.Notify(mc.Source, ERR_USERNOTINCHANNEL, target.Nick, mc.Channel.Name, "They aren't on that channel")
			return false
		}
		mc.Target = target
		mc.Param = target.Nick

	case KindList:
		if mc.Param != "" {
			mc.Param = canonicalMask(mc.Param)
		}

	case KindParam:
		if !mc.Mode.NeedsParam(mc.Adding) {
			mc.Param = ""
			break
		}
		if mc.Param == "" {
			return false
		}
		if mc.Mode.Name == "limit" {
			n, err := strconv.Atoi(mc.Param)
			if err != nil || n <= 0 {
				return false
			}
			mc.Param = strconv.Itoa(n)
		}
	}
	return true
}

func (s *Server) denyMode(mc *ModeChange, err error) {
	text := err.Error()
	var pe *hooks.PanicError
	if errors.As(err, &pe) {
		text = fmt.Sprintf("You do not have access to change the %s mode", mc.Mode.Name)
	}

	zap.S().Debugw("mode change denied",
		"nick", mc.Source.Nick, "target", mc.targetName(), "mode", mc.Mode.Name, "reason", err)

	if mc.Mode.Scope == ScopeChannel {
		s.Notify(mc.Source, ERR_CHANOPRIVSNEEDED, mc.Channel.Name, text)
	} else {
		s.Notify(mc.Source, ERR_NOPRIVILEGES, text)
	}
}

// checkModeAccess is the base permission check applied after every watcher
// allowed the change
func (s *Server) checkModeAccess(mc *ModeChange) bool {
	if mc.Mode.Scope == ScopeUser {
		if mc.Target != mc.Source {
			s.Notify(mc.Source, ERR_USERSDONTMATCH, "Can't change mode for other users")
			return false
		}
		return !(mc.Adding && mc.Mode.RemoveOnly)
	}

	// Members may always drop their own prefixes
	if mc.Mode.Kind == KindPrefix && !mc.Adding && mc.Target == mc.Source {
		return true
	}

	verb := "set"
	if !mc.Adding {
		verb = "unset"
	}

	rank, _ := mc.Channel.Rank(mc.Source)
	if rank < mc.Mode.MinRank {
		s.Notify(mc.Source, ERR_CHANOPRIVSNEEDED, mc.Channel.Name,
			fmt.Sprintf("You must have channel %s access or above to %s channel mode %c", mc.Mode.MinRank, verb, mc.Mode.Letter))
		return false
	}

	// Prefixes of another member need a strictly higher rank than theirs
	if mc.Mode.Kind == KindPrefix && mc.Target != mc.Source && !mc.Source.HasPrivilege(PrivOverride) {
		if targetRank, _ := mc.Channel.Rank(mc.Target); rank <= targetRank {
			s.Notify(mc.Source, ERR_CHANOPRIVSNEEDED, mc.Channel.Name,
				fmt.Sprintf("You must have a higher channel rank than %s to %s channel mode %c", mc.Target.Nick, verb, mc.Mode.Letter))
			return false
		}
	}
	return true
}

// mutateMode applies the change and reports whether anything changed
func (s *Server) mutateMode(mc *ModeChange) bool {
	letter := mc.Mode.Letter

	if mc.Mode.Scope == ScopeUser {
		if mc.Target.modes[letter] == mc.Adding {
			return false
		}
		if mc.Adding {
			mc.Target.modes[letter] = true
		} else {
			delete(mc.Target.modes, letter)
		}
		if letter == 'o' && !mc.Adding {
			mc.Target.RevokePrivileges()
		}
		return true
	}

	ch := mc.Channel
	switch mc.Mode.Kind {
	case KindSimple:
		if ch.modes[letter] == mc.Adding {
			return false
		}
		if mc.Adding {
			ch.modes[letter] = true
		} else {
			delete(ch.modes, letter)
		}

	case KindParam:
		old, set := ch.params[letter]
		if mc.Adding {
			if set && old == mc.Param {
				return false
			}
			ch.params[letter] = mc.Param
		} else {
			if !set {
				return false
			}
			delete(ch.params, letter)
			if mc.Mode.ParamOnUnset {
				mc.Param = old
			}
		}

	case KindList:
		if !mc.Adding {
			return ch.removeListEntry(letter, mc.Param)
		}
		if len(ch.lists[letter]) >= s.config.Limits.MaxList {
			s.Notify(mc.Source, ERR_BANLISTFULL, ch.Name, mc.Param, fmt.Sprintf("Channel %s is full", mc.Mode.ListName))
			return false
		}
		return ch.addListEntry(letter, ListEntry{Mask: mc.Param, Setter: mc.Source.Hostmask(), SetAt: time.Now()})

	case KindPrefix:
		m, ok := ch.Membership(mc.Target)
		if !ok {
			return false
		}
		return m.SetPrefix(letter, mc.Adding)
	}
	return true
}

func (s *Server) sendList(mc *ModeChange) {
	for _, e := range mc.Channel.List(mc.Mode.Letter) {
		s.Notify(mc.Source, mc.Mode.ListReply, mc.Channel.Name, e.Mask, e.Setter, strconv.FormatInt(e.SetAt.Unix(), 10))
	}
	s.Notify(mc.Source, mc.Mode.EndOfListReply, mc.Channel.Name, "End of "+mc.Mode.ListName)
}
