package handler

import (
	"github.com/innernet/server/internal/net/packet"
	"go.uber.org/zap"
)

// HandleGameData processes GameData (tag 5) and GameDataTo (tag 6).
// Format: [int32 game code] then, for GameDataTo, [packed target id],
// followed by a run of game data sub-messages.
//
// The batch is applied to the game's object world first. The original root
// message is then relayed verbatim to every other player, or to the target
// only for GameDataTo.
func HandleGameData(c Client, r *packet.Reader, deps *Deps, targeted bool) error {
	code, err := r.ReadInt32()
	if err != nil {
		return err
	}
	if code != c.GameCode() {
		deps.Log.Debug("game data for foreign game",
			zap.Int32("client", c.ClientID()), zap.Int32("game", code))
		return nil
	}
	room, ok := deps.Games.Find(code)
	if !ok {
		return nil
	}

	res, err := room.Game.Process(r, c, targeted)
	if err != nil {
		return err
	}
	if res.Dropped {
		return nil
	}

	w := packet.NewWriter()
	w.StartMessage(r.Tag())
	w.WriteBytes(r.Buffer())
	w.EndMessage()
	relay := w.Bytes()

	if targeted {
		sendTo(res.Target, relay)
		return nil
	}
	broadcast(room, relay, c.ClientID())
	return nil
}
