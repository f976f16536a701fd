package world

import "errors"

var (
	ErrUnknownBody     = errors.New("world: unknown body handle")
	ErrUnknownCollider = errors.New("world: unknown collider handle")
	ErrUnknownJoint    = errors.New("world: unknown joint handle")
)
