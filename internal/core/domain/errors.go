package domain

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrAlreadyInRoom  = errors.New("already in a room")
	ErrTargetNotFound = errors.New("target not found")
	ErrClientNotFound = errors.New("client not found")
	ErrNotBroadcaster = errors.New("not the broadcaster of the room")
	ErrNotInRoom      = errors.New("not in a room")
)
