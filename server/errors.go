package server

import "errors"

var (
	ErrBadSignature  = errors.New("signature verification failed")
	ErrNotRegistered = errors.New("caller identity not registered")
	ErrNotCleaner    = errors.New("caller not authorized to clean")
	ErrNotSettled    = errors.New("game not settled, can't clean")
	ErrWagerTooSmall = errors.New("wager below server minimum")
	ErrPoolDisabled  = errors.New("no pool configured")
)
