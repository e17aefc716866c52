package handler

import (
	"github.com/innernet/server/internal/game"
	"github.com/innernet/server/internal/net/packet"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DisconnectReason is sent to clients whose lobby request was refused or
// to peers when a player leaves.
type DisconnectReason int32

const (
	ReasonExitGame         DisconnectReason = 0
	ReasonGameFull         DisconnectReason = 1
	ReasonGameStarted      DisconnectReason = 2
	ReasonGameNotFound     DisconnectReason = 3
	ReasonIncorrectVersion DisconnectReason = 5
	ReasonServerFull       DisconnectReason = 20
)

// gameDeparted is stored as the game code of a closed connection so a
// late join cannot seat it.
const gameDeparted int32 = -1

// HandleHostGame processes HostGame (tag 0).
// Format: [options bytes-and-size]. Reply: [int32 game code].
func HandleHostGame(c Client, r *packet.Reader, deps *Deps) error {
	opts, err := game.ReadOptions(r)
	if err != nil {
		if packet.IsProtocolError(err) {
			return err
		}
		deps.Log.Debug("host game rejected", zap.Int32("client", c.ClientID()), zap.Error(err))
		sendJoinError(c, ReasonIncorrectVersion)
		return nil
	}

	if limit := deps.Config.Game.MaxGames; limit > 0 && deps.Games.Count() >= limit {
		sendJoinError(c, ReasonServerFull)
		return nil
	}

	room, err := deps.Games.Create(opts, c.ClientID())
	if err != nil {
		return err
	}

	w := packet.NewWriter()
	w.StartMessage(byte(packet.TagHostGame))
	w.WriteInt32(room.Game.Code)
	w.EndMessage()
	c.Send(w.Bytes())
	return nil
}

// HandleJoinGame processes JoinGame (tag 1).
// Format: [int32 game code].
func HandleJoinGame(c Client, r *packet.Reader, deps *Deps) error {
	code, err := r.ReadInt32()
	if err != nil {
		return err
	}
	if code == 0 || code == gameDeparted {
		sendJoinError(c, ReasonGameNotFound)
		return nil
	}
	// claim the seat first so a concurrent leave either sees the code or
	// makes the claim fail
	if !c.CompareAndSwapGameCode(0, code) {
		deps.Log.Debug("join while already in game",
			zap.Int32("client", c.ClientID()), zap.Int32("game", c.GameCode()))
		return nil
	}

	room, ok := deps.Games.Find(code)
	if !ok {
		c.CompareAndSwapGameCode(code, 0)
		sendJoinError(c, ReasonGameNotFound)
		return nil
	}
	if err := room.Players.Add(c, int(room.Game.Options().MaxPlayers)); err != nil {
		c.CompareAndSwapGameCode(code, 0)
		if errors.Is(err, game.ErrRosterFull) {
			sendJoinError(c, ReasonGameFull)
		}
		return nil
	}
	if cur, ok := deps.Games.Find(code); !ok || cur != room {
		// the room was closed between lookup and seating
		c.CompareAndSwapGameCode(code, 0)
		sendJoinError(c, ReasonGameNotFound)
		return nil
	}
	if c.GameCode() != code {
		// the connection closed while joining
		deps.Games.Leave(code, c.ClientID())
		return nil
	}
	c.SetState(packet.StateInGame)

	host := room.Players.Host()

	// announce to everyone already seated
	w := packet.NewWriter()
	w.StartMessage(byte(packet.TagJoinGame))
	w.WriteInt32(code)
	w.WriteInt32(c.ClientID())
	w.WriteInt32(host)
	w.EndMessage()
	broadcast(room, w.Bytes(), c.ClientID())

	others := make([]int32, 0, room.Players.Len())
	for _, p := range room.Players.All() {
		if p.ClientID() != c.ClientID() {
			others = append(others, p.ClientID())
		}
	}

	w = packet.NewWriter()
	w.StartMessage(byte(packet.TagJoinedGame))
	w.WriteInt32(code)
	w.WriteInt32(c.ClientID())
	w.WriteInt32(host)
	w.WritePackedUint32(uint32(len(others)))
	for _, id := range others {
		w.WritePackedInt32(id)
	}
	w.EndMessage()
	c.Send(w.Bytes())

	deps.Log.Info("player joined",
		zap.Int32("game", code), zap.Int32("client", c.ClientID()), zap.Int32("host", host))
	return nil
}

// HandleLeave removes a closed connection from its game and tells the
// remaining players, including who the host is now. Rooms the client
// hosted but nobody joined are closed too.
func HandleLeave(c Client, deps *Deps) {
	code := c.SwapGameCode(gameDeparted)

	if n := deps.Games.Abandon(c.ClientID()); n > 0 {
		deps.Log.Debug("closed unjoined games", zap.Int32("client", c.ClientID()), zap.Int("count", n))
	}
	if code == 0 || code == gameDeparted {
		return
	}

	room, ok := deps.Games.Find(code)
	if !ok {
		return
	}
	deps.Games.Leave(code, c.ClientID())
	if room.Players.Len() == 0 {
		return
	}

	w := packet.NewWriter()
	w.StartMessage(byte(packet.TagRemovePlayer))
	w.WriteInt32(code)
	w.WriteInt32(c.ClientID())
	w.WriteInt32(room.Players.Host())
	_ = w.WriteByte(byte(ReasonExitGame))
	w.EndMessage()
	broadcast(room, w.Bytes(), c.ClientID())

	deps.Log.Info("player left", zap.Int32("game", code), zap.Int32("client", c.ClientID()))
}

func sendJoinError(c Client, reason DisconnectReason) {
	w := packet.NewWriter()
	w.StartMessage(byte(packet.TagJoinGame))
	w.WriteInt32(int32(reason))
	w.EndMessage()
	c.Send(w.Bytes())
}
