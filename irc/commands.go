package irc

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/presbrey/ircd/irc/metrics"
)

// CmdResult is the outcome of a command handler
type CmdResult int

const (
	CmdSuccess CmdResult = iota // at least the minimum expected effect occurred
	CmdFailure                  // rejected, or every target was rejected
	CmdInvalid                  // malformed invocation, the handler never ran
)

func (r CmdResult) String() string {
	switch r {
	case CmdSuccess:
		return "success"
	case CmdFailure:
		return "failure"
	}
	return "invalid"
}

// Command is a named handler invoked by the dispatcher
type Command interface {
	Name() string
	MinParams() int
	Syntax() string
	Execute(user *User, params []string) CmdResult
}

// CommandBase carries the static description of a command. Embed it to
// satisfy everything but Execute.
type CommandBase struct {
	name      string
	minParams int
	syntax    string
}

// NewCommandBase describes a command
func NewCommandBase(name string, minParams int, syntax string) CommandBase {
	return CommandBase{name: strings.ToUpper(name), minParams: minParams, syntax: syntax}
}

func (b CommandBase) Name() string   { return b.name }
func (b CommandBase) MinParams() int { return b.minParams }
func (b CommandBase) Syntax() string { return b.syntax }

type funcCommand struct {
	CommandBase
	fn func(user *User, params []string) CmdResult
}

func (c *funcCommand) Execute(user *User, params []string) CmdResult {
	return c.fn(user, params)
}

// CommandFunc builds a Command from a plain function
func CommandFunc(name string, minParams int, syntax string, fn func(user *User, params []string) CmdResult) Command {
	return &funcCommand{CommandBase: NewCommandBase(name, minParams, syntax), fn: fn}
}

type moduleCommand struct {
	owner string
	cmd   Command
}

// CommandTable maps command names to handlers. Core commands and module
// commands live side by side; module commands win on lookup, and core
// re-registration never touches them.
type CommandTable struct {
	core    map[string]Command
	modules map[string]moduleCommand
}

// NewCommandTable returns an empty table
func NewCommandTable() *CommandTable {
	return &CommandTable{
		core:    make(map[string]Command),
		modules: make(map[string]moduleCommand),
	}
}

// Register stores a core command, replacing any core command of the same name
func (t *CommandTable) Register(cmd Command) {
	t.core[strings.ToUpper(cmd.Name())] = cmd
}

// RegisterModule stores a command owned by a module. A module may replace its
// own command but not one owned by another module.
func (t *CommandTable) RegisterModule(owner string, cmd Command) error {
	name := strings.ToUpper(cmd.Name())
	if existing, ok := t.modules[name]; ok && existing.owner != owner {
		return fmt.Errorf("%s: %w (%s)", name, ErrCommandExists, existing.owner)
	}
	t.modules[name] = moduleCommand{owner: owner, cmd: cmd}
	return nil
}

// RemoveOwner drops every command registered by owner
func (t *CommandTable) RemoveOwner(owner string) int {
	removed := 0
	for name, mc := range t.modules {
		if mc.owner == owner {
			delete(t.modules, name)
			removed++
		}
	}
	return removed
}

// Lookup finds the command that would handle name
func (t *CommandTable) Lookup(name string) (Command, bool) {
	name = strings.ToUpper(name)
	if mc, ok := t.modules[name]; ok {
		return mc.cmd, true
	}
	cmd, ok := t.core[name]
	return cmd, ok
}

// Names returns every dispatchable command name
func (t *CommandTable) Names() []string {
	seen := make(map[string]bool, len(t.core)+len(t.modules))
	var names []string
	for name := range t.modules {
		seen[name] = true
		names = append(names, name)
	}
	for name := range t.core {
		if !seen[name] {
			names = append(names, name)
		}
	}
	return names
}

// Dispatch runs the named command for issuer. Unknown commands fail with
// ErrUnknownCommand; too few parameters yield CmdInvalid without calling the
// handler. The handler's result is returned as is. A handler that panics is
// reported as CmdFailure with an error.
func (t *CommandTable) Dispatch(name string, params []string, issuer *User) (result CmdResult, err error) {
	cmd, ok := t.Lookup(name)
	if !ok {
		metrics.Commands.WithLabelValues("unknown", CmdFailure.String()).Inc()
		return CmdFailure, fmt.Errorf("%s: %w", name, ErrUnknownCommand)
	}
	defer func() {
		metrics.Commands.WithLabelValues(cmd.Name(), result.String()).Inc()
	}()

	if len(params) < cmd.MinParams() {
		return CmdInvalid, nil
	}

	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorw("PANIC in command handler", "command", cmd.Name(), "nick", issuer.Nick, "panic", r)
			result, err = CmdFailure, fmt.Errorf("command %s panicked: %v", cmd.Name(), r)
		}
	}()
	return cmd.Execute(issuer, params), nil
}
