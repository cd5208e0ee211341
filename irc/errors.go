package irc

import "errors"

var (
	ErrUnknownCommand    = errors.New("unknown command")
	ErrCommandExists     = errors.New("command already registered by another module")
	ErrNicknameInUse     = errors.New("nickname is already in use")
	ErrErroneousNickname = errors.New("erroneous nickname")
	ErrNoSuchChannel     = errors.New("no such channel")
	ErrServerClosed      = errors.New("server closed")
	ErrModuleExists      = errors.New("module already loaded")
	ErrNoSuchModule      = errors.New("no such module")
)
