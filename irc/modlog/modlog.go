// Package modlog records applied channel mode changes in a SQL database.
//
//	tags:
//	  modlog:
//	    - mode: ban
//	    - mode: op
//	  database:
//	    - dsn: file:modes.db
//
// Without a database tag the log is kept in memory.
package modlog

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/presbrey/ircd/irc"
	"github.com/presbrey/ircd/irc/config"
)

// Name is the module name used in configuration and as the watcher owner
const Name = "modlog"

// DefaultDSN keeps the log in a private in-memory database
const DefaultDSN = ":memory:"

func init() {
	irc.RegisterModule(Name, New)
}

// Entry is one applied mode change
type Entry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Channel    string    `json:"channel"`
	ChannelKey string    `gorm:"index" json:"-"`
	Mode       string    `json:"mode"`
	Param      string    `json:"param,omitempty"`
	Adding     bool      `json:"adding"`
	Setter     string    `json:"setter"`
	CreatedAt  time.Time `json:"created_at"`
}

// Module writes an Entry for every applied change of the configured modes
type Module struct {
	server *irc.Server
	db     *gorm.DB
	dsn    string
	modes  []string
}

// New returns an unloaded module
func New() irc.Module {
	return &Module{}
}

func (m *Module) Name() string { return Name }

func (m *Module) Description() string {
	return "Records channel mode changes in a database"
}

func (m *Module) Init(s *irc.Server) error {
	m.server = s
	return nil
}

// ReadConfig opens the configured database if it changed and rebuilds the
// watcher set
func (m *Module) ReadConfig(cfg *config.Config) error {
	var watchers []*irc.ModeWatcher
	var modes []string
	for i, tag := range cfg.ConfTags("modlog") {
		mode := tag.GetString("mode")
		if _, ok := m.server.Modes().ByName(irc.ScopeChannel, mode); !ok {
			return fmt.Errorf("modlog entry %d: unknown channel mode %q", i, mode)
		}
		modes = append(modes, mode)
		watchers = append(watchers, &irc.ModeWatcher{
			Mode:  mode,
			Scope: irc.ScopeChannel,
			After: m.record,
		})
	}

	dsn := DefaultDSN
	if tags := cfg.ConfTags("database"); len(tags) > 0 {
		if v := tags[0].GetString("dsn"); v != "" {
			dsn = v
		}
	}
	if m.db == nil || dsn != m.dsn {
		db, err := open(dsn)
		if err != nil {
			return fmt.Errorf("modlog: %w", err)
		}
		m.close()
		m.db, m.dsn = db, dsn
	}

	m.server.ReplaceWatchers(Name, watchers)
	m.modes = modes

	zap.S().Infow("modlog configured", "modes", modes, "dsn", dsn)
	return nil
}

func (m *Module) Unload() {
	m.close()
}

// Modes returns the names of the logged modes
func (m *Module) Modes() []string {
	return m.modes
}

// History returns up to limit entries for a channel, newest first
func (m *Module) History(channel string, limit int) ([]Entry, error) {
	if m.db == nil {
		return nil, fmt.Errorf("modlog: %w", irc.ErrNoSuchModule)
	}

	var entries []Entry
	err := m.db.Where("channel_key = ?", irc.FoldName(channel)).
		Order("id desc").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (m *Module) record(mc *irc.ModeChange) {
	if m.db == nil {
		return
	}
	entry := Entry{
		Channel:    mc.Channel.Name,
		ChannelKey: irc.FoldName(mc.Channel.Name),
		Mode:       mc.Mode.Name,
		Param:      mc.Param,
		Adding:     mc.Adding,
		Setter:     mc.Source.Hostmask(),
	}
	if err := m.db.Create(&entry).Error; err != nil {
		zap.S().Errorw("failed to record mode change", "channel", entry.Channel, "mode", entry.Mode, "error", err)
	}
}

func (m *Module) close() {
	if m.db == nil {
		return
	}
	if sqlDB, err := m.db.DB(); err == nil {
		sqlDB.Close()
	}
	m.db = nil
}

// open connects with gorm's own logger silenced and creates the table
func open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, err
	}

	// Every pooled connection to :memory: would get its own empty database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Entry{}); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}
