package irc

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/presbrey/ircd/irc/config"
)

// Module is a unit of optional behaviour. Modules attach mode watchers and
// commands under their own name, so unloading one removes exactly what it
// added.
type Module interface {
	Name() string
	Description() string
	// Init is called once when the module is loaded
	Init(s *Server) error
	// ReadConfig is called after Init and again on every rehash
	ReadConfig(cfg *config.Config) error
	// Unload is called before the module's watchers and commands are dropped
	Unload()
}

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]func() Module)
)

// RegisterModule makes a module available to LoadModules by name. It is
// meant to be called from the init function of the module's package.
func RegisterModule(name string, factory func() Module) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if _, dup := factories[name]; dup {
		panic("irc: RegisterModule called twice for " + name)
	}
	factories[name] = factory
}

// AvailableModules returns the names of every registered module
func AvailableModules() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadModules loads every module named in the configuration, in order
func (s *Server) LoadModules() error {
	var errs []error
	for _, name := range s.config.Modules {
		factoriesMu.RLock()
		factory, ok := factories[name]
		factoriesMu.RUnlock()

		if !ok {
			errs = append(errs, fmt.Errorf("%s: %w", name, ErrNoSuchModule))
			continue
		}
		if err := s.LoadModule(factory()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadModule initializes m and feeds it the current configuration. A module
// that fails either step is unloaded again.
func (s *Server) LoadModule(m Module) error {
	if _, loaded := s.Module(m.Name()); loaded {
		return fmt.Errorf("%s: %w", m.Name(), ErrModuleExists)
	}

	if err := m.Init(s); err != nil {
		s.dropModuleHooks(m.Name())
		return fmt.Errorf("module %s: init: %w", m.Name(), err)
	}
	if err := m.ReadConfig(s.config); err != nil {
		m.Unload()
		s.dropModuleHooks(m.Name())
		return fmt.Errorf("module %s: config: %w", m.Name(), err)
	}

	s.modules = append(s.modules, m)
	zap.S().Infow("module loaded", "module", m.Name(), "description", m.Description())
	return nil
}

// UnloadModule unloads a module and removes every watcher and command it owns
func (s *Server) UnloadModule(name string) error {
	for i, m := range s.modules {
		if m.Name() != name {
			continue
		}
		m.Unload()
		watchers, commands := s.dropModuleHooks(name)
		s.modules = append(s.modules[:i:i], s.modules[i+1:]...)

		zap.S().Infow("module unloaded", "module", name, "watchers", watchers, "commands", commands)
		return nil
	}
	return fmt.Errorf("%s: %w", name, ErrNoSuchModule)
}

func (s *Server) dropModuleHooks(name string) (watchers, commands int) {
	return s.watchers.RemoveOwner(name), s.commands.RemoveOwner(name)
}

// Module returns a loaded module by name
func (s *Server) Module(name string) (Module, bool) {
	for _, m := range s.modules {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// RegisterCommand adds a command owned by a module
func (s *Server) RegisterCommand(owner string, cmd Command) error {
	return s.commands.RegisterModule(owner, cmd)
}

// Rehash reloads the configuration from source, or from where it was last
// loaded when source is empty, and passes it to every loaded module
func (s *Server) Rehash(source string) error {
	if err := s.config.Reload(source); err != nil {
		zap.S().Errorw("rehash failed", "source", source, "error", err)
		return fmt.Errorf("rehash: %w", err)
	}

	var errs []error
	for _, m := range s.modules {
		if err := m.ReadConfig(s.config); err != nil {
			errs = append(errs, fmt.Errorf("module %s: %w", m.Name(), err))
		}
	}

	zap.S().Infow("configuration reloaded", "source", s.config.Source, "modules", len(s.modules), "errors", len(errs))
	return errors.Join(errs...)
}
