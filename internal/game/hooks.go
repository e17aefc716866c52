package game

import (
	"github.com/innernet/server/internal/net/packet"
	"github.com/innernet/server/internal/world"
)

// Player is the handle a lookup resolves to. The game only needs its id.
type Player interface {
	ClientID() int32
}

// PlayerLookup resolves a client id to a live player.
type PlayerLookup interface {
	FindPlayer(id int32) (Player, bool)
}

// SceneSink receives scene change notifications.
type SceneSink interface {
	OnSceneChange(gameCode, clientID int32, scene string)
}

// ReadySink receives ready state notifications.
type ReadySink interface {
	OnReady(gameCode, clientID int32)
}

// RpcSink receives every RPC routed to a registered object. payload aliases
// the inbound buffer and must be copied if retained.
type RpcSink interface {
	OnRpc(gameCode int32, obj *world.NetObject, callID byte, payload []byte)
}

// OptionsSink receives game options announced by the host.
type OptionsSink interface {
	OnOptionsChanged(gameCode int32, opts *Options)
}

// Metrics counts dispatcher traffic and semantic anomalies.
type Metrics interface {
	SubMessage(tag packet.GameDataTag)
	Anomaly(reason string)
}

// Hooks bundles the optional collaborators of a game. Nil fields are no-ops.
// Implementations are called with the game lock held and must not block.
type Hooks struct {
	Scene   SceneSink
	Ready   ReadySink
	Rpc     RpcSink
	Options OptionsSink
	Metrics Metrics
}

type nopHooks struct{}

func (nopHooks) OnSceneChange(int32, int32, string) {}
func (nopHooks) OnReady(int32, int32) {}
func (nopHooks) OnRpc(int32, *world.NetObject, byte, []byte) {}
func (nopHooks) OnOptionsChanged(int32, *Options) {}
func (nopHooks) SubMessage(packet.GameDataTag) {}
func (nopHooks) Anomaly(string) {}

func (h Hooks) withDefaults() Hooks {
	if h.Scene == nil {
		h.Scene = nopHooks{}
	}
	if h.Ready == nil {
		h.Ready = nopHooks{}
	}
	if h.Rpc == nil {
		h.Rpc = nopHooks{}
	}
	if h.Options == nil {
		h.Options = nopHooks{}
	}
	if h.Metrics == nil {
		h.Metrics = nopHooks{}
	}
	return h
}

// Sinks fans one notification out to several sinks. Each element is
// checked for the sink interfaces it implements.
type Sinks []any

func (s Sinks) OnSceneChange(gameCode, clientID int32, scene string) {
	for _, x := range s {
		if sink, ok := x.(SceneSink); ok {
			sink.OnSceneChange(gameCode, clientID, scene)
		}
	}
}

func (s Sinks) OnReady(gameCode, clientID int32) {
	for _, x := range s {
		if sink, ok := x.(ReadySink); ok {
			sink.OnReady(gameCode, clientID)
		}
	}
}

func (s Sinks) OnRpc(gameCode int32, obj *world.NetObject, callID byte, payload []byte) {
	for _, x := range s {
		if sink, ok := x.(RpcSink); ok {
			sink.OnRpc(gameCode, obj, callID, payload)
		}
	}
}

func (s Sinks) OnOptionsChanged(gameCode int32, opts *Options) {
	for _, x := range s {
		if sink, ok := x.(OptionsSink); ok {
			sink.OnOptionsChanged(gameCode, opts)
		}
	}
}
