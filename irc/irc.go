/*
Package irc implements the core of an Internet Relay Chat (IRC) server: the
command dispatcher, the channel membership and rank model, and the mode change
engine with its pluggable watcher chain.

# Features

## Commands

- Name-keyed command table with a shared contract (minimum parameters, syntax, handler)
- Three-way results: SUCCESS, FAILURE and INVALID (too few parameters, the handler never runs)
- Core commands can be re-registered; commands owned by modules are kept apart and win on lookup
- Built-in commands: NICK, JOIN, PART, NAMES, MODE, KICK, QUIT, PING, PONG, OPER, REHASH

## Channels and Ranks

- Memberships carry prefix modes and a rank derived from the highest one:
  - q (founder, ~) 50000
  - a (admin, &) 40000
  - o (op, @) 30000
  - h (halfop, %) 20000
  - v (voice, +) 10000
- Rank comparisons are strict: equal ranks never grant authority over each other
- The creator of a channel is granted op; a channel with no members is destroyed

## Modes

- Channel list modes b, e and I, parameter modes k and l, simple modes i m n p s t
- User modes i, w and o
- Every letter of a MODE line is its own attempt: watcher before-hooks in
  registration order (the first veto wins), then the rank check, then the
  mutation, then the after-hooks
- A list mode without a parameter is a list query and goes through the same watchers

## Capabilities

- CAP LS, LIST, REQ and END; multi-prefix and userhost-in-names change NAMES replies

## Modules

- Modules register mode watchers and commands under their own name
- Unloading a module or rebuilding its watchers on rehash replaces its whole
  set in one step

# Concurrency

All users, channels and registries are owned by one goroutine started with
Server.Run. Connections, the admin API and anything else outside that
goroutine submit work through Server.Do. A handler that never returns blocks
every later request.

# Usage

	cfg, err := config.Load("ircd.yaml")
	if err != nil {
	    log.Fatalf("Failed to load config: %v", err)
	}

	srv := irc.NewServer(cfg)
	go srv.Run(ctx)

	var loadErr error
	if err := srv.Do(ctx, func() { loadErr = srv.LoadModules() }); err != nil || loadErr != nil {
	    log.Fatalf("Failed to load modules: %v %v", err, loadErr)
	}

	err = srv.ListenAndServe(ctx)
*/
package irc
