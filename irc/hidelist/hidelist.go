// Package hidelist hides channel list modes from members below a configured
// rank.
//
// Each tags.hidelist entry names a list mode and the minimum rank needed to
// view it:
//
//	tags:
//	  hidelist:
//	    - mode: ban
//	      rank: 0        # any member may view the ban list
//	    - mode: invex    # rank defaults to halfop
//
// Setting and unsetting entries is not affected. Users holding the
// channels/auspex privilege can always view the lists.
package hidelist

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/presbrey/ircd/irc"
	"github.com/presbrey/ircd/irc/config"
)

// Name is the module name used in configuration and as the watcher owner
const Name = "hidelist"

func init() {
	irc.RegisterModule(Name, New)
}

// Module is the list visibility guard
type Module struct {
	server     *irc.Server
	thresholds map[string]irc.Rank
}

// New returns an unloaded module
func New() irc.Module {
	return &Module{}
}

func (m *Module) Name() string { return Name }

func (m *Module) Description() string {
	return "Restricts viewing of channel list modes to members of a minimum rank"
}

func (m *Module) Init(s *irc.Server) error {
	m.server = s
	return nil
}

// ReadConfig rebuilds the whole watcher set from tags.hidelist and swaps it
// in at once. An invalid entry rejects the new set and keeps the old one.
func (m *Module) ReadConfig(cfg *config.Config) error {
	thresholds := make(map[string]irc.Rank)
	var watchers []*irc.ModeWatcher

	for i, tag := range cfg.ConfTags("hidelist") {
		mode := tag.GetString("mode")
		if mode == "" {
			return fmt.Errorf("hidelist entry %d: empty mode", i)
		}
		def, ok := m.server.Modes().ByName(irc.ScopeChannel, mode)
		if !ok || def.Kind != irc.KindList {
			return fmt.Errorf("hidelist entry %d: %q is not a list mode", i, mode)
		}

		rank := irc.Rank(tag.GetInt("rank", int(irc.RankHalfop), 0))
		if r, ok := irc.ParseRank(tag.GetString("rank")); ok {
			rank = r
		}

		thresholds[def.Name] = rank
		watchers = append(watchers, &irc.ModeWatcher{
			Mode:   def.Name,
			Scope:  irc.ScopeChannel,
			Before: listGuard(def.Name, rank),
		})
	}

	m.server.ReplaceWatchers(Name, watchers)
	m.thresholds = thresholds

	zap.S().Infow("hidelist configured", "modes", len(watchers))
	return nil
}

func (m *Module) Unload() {
	m.thresholds = nil
}

// MinRank returns the rank required to view a list mode
func (m *Module) MinRank(mode string) (irc.Rank, bool) {
	r, ok := m.thresholds[mode]
	return r, ok
}

// listGuard allows list views to members of at least minRank and to
// auspex holders. Changes with a parameter are never blocked.
func listGuard(mode string, minRank irc.Rank) func(mc *irc.ModeChange) error {
	return func(mc *irc.ModeChange) error {
		if mc.Param != "" {
			return nil
		}
		if rank, member := mc.Channel.Rank(mc.Source); member && rank >= minRank {
			return nil
		}
		if mc.Source.HasPrivilege(irc.PrivAuspex) {
			return nil
		}
		return fmt.Errorf("You do not have access to view the %s list", mode)
	}
}
