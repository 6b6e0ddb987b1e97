package domain

import "time"

type ClientID string
type RoomID string

// Role describes what a client is currently doing in a room.
type Role string

const (
	RoleUnassigned   Role = "unassigned"
	RoleBroadcasting Role = "broadcasting"
	RoleViewing      Role = "viewing"
)

// Client is one registered connection.
type Client struct {
	ID          ClientID
	ConnectedAt time.Time
}
