package game

import (
	"github.com/innernet/server/internal/net/packet"
	"github.com/innernet/server/internal/world"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Result describes what a processed batch was addressed to.
type Result struct {
	// Target is the addressed player for a targeted batch, nil for broadcast.
	Target Player
	// Dropped is set when the target could not be resolved; nothing was applied.
	Dropped bool
	// Messages is the number of sub-messages read.
	Messages int
}

// Process applies every sub-message of a game data batch. If targeted, the
// batch starts with the target client id; an unknown target drops the whole
// batch silently.
//
// Only structural failures are returned (wrapping packet.ProtocolError).
// Stale ids, unknown spawnables and the like are logged and skipped, so a
// batch may be partially applied.
func (g *Game) Process(r *packet.Reader, sender Player, targeted bool) (Result, error) {
	var res Result

	g.mu.Lock()
	defer g.mu.Unlock()

	if targeted {
		targetID, err := r.ReadPackedInt32()
		if err != nil {
			return res, errors.Wrap(err, "read target id")
		}
		target, ok := g.players.FindPlayer(targetID)
		if !ok {
			g.log.Debug("game data target not found",
				zap.Int32("target", targetID),
				zap.Int32("sender", clientID(sender)),
			)
			res.Dropped = true
			return res, nil
		}
		res.Target = target
	}

	for r.HasRemaining() {
		msg, err := r.ReadMessage()
		if err != nil {
			return res, errors.Wrap(err, "read game data message")
		}
		res.Messages++
		if err := g.handleMessage(msg, sender); err != nil {
			return res, errors.Wrapf(err, "game data %s", packet.GameDataTag(msg.Tag()))
		}
	}
	return res, nil
}

func (g *Game) handleMessage(msg *packet.Reader, sender Player) error {
	tag := packet.GameDataTag(msg.Tag())
	g.hooks.Metrics.SubMessage(tag)

	switch tag {
	case packet.GameDataData:
		return g.handleData(msg)
	case packet.GameDataRpc:
		return g.handleRpc(msg)
	case packet.GameDataSpawn:
		return g.handleSpawn(msg)
	case packet.GameDataDespawn:
		return g.handleDespawn(msg)
	case packet.GameDataSceneChange:
		clientID, err := msg.ReadPackedInt32()
		if err != nil {
			return err
		}
		scene, err := msg.ReadString()
		if err != nil {
			return err
		}
		g.log.Debug("scene change", zap.Int32("client", clientID), zap.String("scene", scene))
		g.hooks.Scene.OnSceneChange(g.Code, clientID, scene)
		return nil
	case packet.GameDataReady:
		clientID, err := msg.ReadPackedInt32()
		if err != nil {
			return err
		}
		g.log.Debug("client ready", zap.Int32("client", clientID))
		g.hooks.Ready.OnReady(g.Code, clientID)
		return nil
	case packet.GameDataChangeSettings:
		return g.handleChangeSettings(msg)
	default:
		g.log.Debug("unknown game data tag",
			zap.Uint8("tag", byte(tag)),
			zap.Int32("sender", clientID(sender)),
		)
		return nil
	}
}

func (g *Game) handleData(msg *packet.Reader) error {
	netID, err := msg.ReadPackedUint32()
	if err != nil {
		return err
	}
	obj, ok := g.objects.Get(netID)
	if !ok {
		g.log.Warn("data for unregistered net id", zap.Uint32("net_id", netID))
		g.hooks.Metrics.Anomaly("data_unregistered")
		return nil
	}
	if err := obj.Behavior.Deserialize(msg, false); err != nil {
		g.log.Warn("data deserialize failed", zap.Stringer("object", obj), zap.Error(err))
		g.hooks.Metrics.Anomaly("data_deserialize")
	}
	return nil
}

func (g *Game) handleRpc(msg *packet.Reader) error {
	netID, err := msg.ReadPackedUint32()
	if err != nil {
		return err
	}
	obj, ok := g.objects.Get(netID)
	if !ok {
		g.log.Warn("rpc for unregistered net id", zap.Uint32("net_id", netID))
		g.hooks.Metrics.Anomaly("rpc_unregistered")
		return nil
	}
	callID, err := msg.ReadByte()
	if err != nil {
		return err
	}
	payload := msg.Unread()
	if err := obj.Behavior.HandleRpc(callID, msg); err != nil {
		g.log.Warn("rpc handling failed",
			zap.Stringer("object", obj),
			zap.Uint8("call", callID),
			zap.Error(err),
		)
		g.hooks.Metrics.Anomaly("rpc_handle")
		return nil
	}
	g.hooks.Rpc.OnRpc(g.Code, obj, callID, payload)
	return nil
}

func (g *Game) handleSpawn(msg *packet.Reader) error {
	index, err := msg.ReadPackedUint32()
	if err != nil {
		return err
	}
	ownerID, err := msg.ReadPackedInt32()
	if err != nil {
		return err
	}
	spawned, err := g.spawns.Resolve(index, ownerID)
	if err != nil {
		g.log.Error("couldn't find spawnable", zap.Uint32("index", index), zap.Error(err))
		g.hooks.Metrics.Anomaly("spawn_unknown")
		return nil
	}
	flags, err := msg.ReadByte()
	if err != nil {
		return err
	}
	root := spawned.Root()
	root.Flags = world.SpawnFlags(flags)

	count, err := msg.ReadPackedInt32()
	if err != nil {
		return err
	}
	if int(count) != len(spawned.Components) {
		g.log.Error("spawn component count mismatch",
			zap.Uint32("index", index),
			zap.String("spawnable", spawned.Template.Name),
			zap.Int32("wire", count),
			zap.Int("template", len(spawned.Components)),
		)
		g.hooks.Metrics.Anomaly("spawn_component_count")
		return nil
	}

	for _, obj := range spawned.Components {
		netID, err := msg.ReadPackedUint32()
		if err != nil {
			return err
		}
		obj.NetID = netID
		obj.OwnerID = ownerID

		if !g.objects.Add(obj) {
			g.log.Debug("failed to add net object", zap.Uint32("net_id", netID), zap.Stringer("kind", obj.Kind))
			g.hooks.Metrics.Anomaly("spawn_duplicate")
			obj.NetID = world.InvalidNetID
			break
		}

		sub, err := msg.ReadMessage()
		if err != nil {
			return err
		}
		if sub.Len() > 0 {
			if err := obj.Behavior.Deserialize(sub, true); err != nil {
				g.log.Warn("spawn deserialize failed", zap.Stringer("object", obj), zap.Error(err))
				g.hooks.Metrics.Anomaly("spawn_deserialize")
			}
		}
	}

	if root.Flags&world.SpawnFlagClientCharacter != 0 {
		if _, ok := g.players.FindPlayer(ownerID); ok {
			g.log.Debug("spawn character", zap.Int32("owner", ownerID), zap.Uint32("net_id", root.NetID))
		} else {
			g.log.Debug("spawn unowned character", zap.Int32("owner", ownerID), zap.Uint32("net_id", root.NetID))
		}
	}
	return nil
}

func (g *Game) handleDespawn(msg *packet.Reader) error {
	netID, err := msg.ReadPackedUint32()
	if err != nil {
		return err
	}
	obj, ok := g.objects.Get(netID)
	if !ok {
		g.log.Warn("despawn for unregistered net id", zap.Uint32("net_id", netID))
		g.hooks.Metrics.Anomaly("despawn_unregistered")
		return nil
	}
	g.log.Debug("despawn", zap.Stringer("object", obj))
	g.objects.Remove(obj)
	return nil
}

func (g *Game) handleChangeSettings(msg *packet.Reader) error {
	blob, err := msg.ReadBytesAndSize()
	if err != nil {
		return err
	}
	opts, err := DecodeOptions(blob)
	if err != nil {
		g.log.Warn("bad settings blob", zap.Error(err))
		g.hooks.Metrics.Anomaly("settings_decode")
		return nil
	}
	g.options = opts
	g.hooks.Options.OnOptionsChanged(g.Code, opts)
	return nil
}

func clientID(p Player) int32 {
	if p == nil {
		return -1
	}
	return p.ClientID()
}
