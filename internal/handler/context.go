package handler

import (
	"github.com/innernet/server/internal/config"
	"github.com/innernet/server/internal/game"
	"github.com/innernet/server/internal/net"
	"github.com/innernet/server/internal/net/packet"
	"go.uber.org/zap"
)

// Deps holds shared dependencies injected into all root message handlers.
type Deps struct {
	Config *config.Config
	Games  *game.Manager
	Log    *zap.Logger
}

// Client is the part of a connection the handlers need. *net.Session
// implements it. The game code changes only through the atomic
// compare-and-swap and swap so joins and leaves on different goroutines
// agree on the outcome.
type Client interface {
	ClientID() int32
	Send(data []byte)
	State() packet.SessionState
	SetState(st packet.SessionState)
	GameCode() int32
	CompareAndSwapGameCode(old, code int32) bool
	SwapGameCode(code int32) int32
}

// RegisterAll registers all root message handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	reg.Register(packet.TagHostGame,
		[]packet.SessionState{packet.StateConnected},
		func(sess any, r *packet.Reader) error {
			return HandleHostGame(sess.(Client), r, deps)
		},
	)
	reg.Register(packet.TagJoinGame,
		[]packet.SessionState{packet.StateConnected},
		func(sess any, r *packet.Reader) error {
			return HandleJoinGame(sess.(Client), r, deps)
		},
	)

	inGameStates := []packet.SessionState{packet.StateInGame}

	reg.Register(packet.TagGameData, inGameStates,
		func(sess any, r *packet.Reader) error {
			return HandleGameData(sess.(Client), r, deps, false)
		},
	)
	reg.Register(packet.TagGameDataTo, inGameStates,
		func(sess any, r *packet.Reader) error {
			return HandleGameData(sess.(Client), r, deps, true)
		},
	)
}

// Router feeds transport packets into the registry. It implements net.Handler.
type Router struct {
	reg  *packet.Registry
	deps *Deps
}

func NewRouter(reg *packet.Registry, deps *Deps) *Router {
	return &Router{reg: reg, deps: deps}
}

func (rt *Router) HandlePacket(s *net.Session, data []byte) error {
	return rt.reg.DispatchPacket(s, s.State, data)
}

func (rt *Router) SessionClosed(s *net.Session) {
	HandleLeave(s, rt.deps)
}
