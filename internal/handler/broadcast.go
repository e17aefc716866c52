package handler

import (
	"github.com/innernet/server/internal/game"
)

type sender interface {
	Send(data []byte)
}

// sendTo delivers data to p when the player is backed by a connection.
func sendTo(p game.Player, data []byte) {
	if s, ok := p.(sender); ok {
		s.Send(data)
	}
}

// broadcast sends data to every player in room except the one with exclude.
func broadcast(room *game.Room, data []byte, exclude int32) {
	for _, p := range room.Players.All() {
		if p.ClientID() == exclude {
			continue
		}
		sendTo(p, data)
	}
}
