package handler

import (
	"sync"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/innernet/server/internal/config"
	"github.com/innernet/server/internal/game"
	"github.com/innernet/server/internal/net/packet"
	"github.com/innernet/server/internal/world"
	"go.uber.org/zap"
)

type fakeClient struct {
	id    int32
	mu    sync.Mutex
	state packet.SessionState
	code  int32
	sent  [][]byte
}

func newFakeClient(id int32) *fakeClient {
	return &fakeClient{id: id, state: packet.StateConnected}
}

func (c *fakeClient) ClientID() int32 { return c.id }

func (c *fakeClient) Send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, append([]byte(nil), data...))
}

func (c *fakeClient) State() packet.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeClient) SetState(st packet.SessionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = st
}

func (c *fakeClient) GameCode() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

func (c *fakeClient) CompareAndSwapGameCode(old, code int32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.code != old {
		return false
	}
	c.code = code
	return true
}

func (c *fakeClient) SwapGameCode(code int32) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.code
	c.code = code
	return old
}

// last returns the most recent root message sent to the client.
func (c *fakeClient) last(t *testing.T) *packet.Reader {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		t.Fatalf("client %d: nothing sent", c.id)
	}
	msg, err := packet.NewReader(c.sent[len(c.sent)-1]).ReadMessage()
	if err != nil {
		t.Fatalf("client %d: %v", c.id, err)
	}
	return msg
}

func (c *fakeClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func newTestDeps() (*Deps, *packet.Registry) {
	cfg := config.Defaults()
	deps := &Deps{
		Config: cfg,
		Games:  game.NewManager(world.DefaultSpawnTable(), game.Hooks{}, zap.NewNop()),
		Log:    zap.NewNop(),
	}
	reg := packet.NewRegistry(zap.NewNop())
	RegisterAll(reg, deps)
	return deps, reg
}

func hostPacket(opts *game.Options) []byte {
	w := packet.NewWriter()
	w.StartMessage(byte(packet.TagHostGame))
	game.WriteOptions(w, opts)
	w.EndMessage()
	return w.Bytes()
}

func joinPacket(code int32) []byte {
	w := packet.NewWriter()
	w.StartMessage(byte(packet.TagJoinGame))
	w.WriteInt32(code)
	w.EndMessage()
	return w.Bytes()
}

func dispatch(t *testing.T, reg *packet.Registry, c *fakeClient, data []byte) {
	if err := reg.DispatchPacket(c, c.State, data); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
}

func hostGame(t *testing.T, reg *packet.Registry, host *fakeClient, opts *game.Options) int32 {
	dispatch(t, reg, host, hostPacket(opts))
	reply := host.last(t)
	assert.Equal(t, byte(packet.TagHostGame), reply.Tag())
	code, err := reply.ReadInt32()
	assert.Equal(t, nil, err)
	return code
}

func TestHostAndJoin(t *testing.T) {
	deps, reg := newTestDeps()
	host := newFakeClient(1)
	code := hostGame(t, reg, host, game.DefaultOptions())
	assert.NotEqual(t, int32(0), code)
	assert.Equal(t, 1, deps.Games.Count())

	// the host joins its own game first
	dispatch(t, reg, host, joinPacket(code))
	joined := host.last(t)
	assert.Equal(t, byte(packet.TagJoinedGame), joined.Tag())
	assert.Equal(t, packet.StateInGame, host.State())
	assert.Equal(t, code, host.GameCode())

	guest := newFakeClient(2)
	dispatch(t, reg, guest, joinPacket(code))

	joined = guest.last(t)
	assert.Equal(t, byte(packet.TagJoinedGame), joined.Tag())
	gotCode, _ := joined.ReadInt32()
	self, _ := joined.ReadInt32()
	hostID, _ := joined.ReadInt32()
	n, _ := joined.ReadPackedUint32()
	other, _ := joined.ReadPackedInt32()
	assert.Equal(t, code, gotCode)
	assert.Equal(t, int32(2), self)
	assert.Equal(t, int32(1), hostID)
	assert.Equal(t, uint32(1), n)
	assert.Equal(t, int32(1), other)

	announce := host.last(t)
	assert.Equal(t, byte(packet.TagJoinGame), announce.Tag())
	announce.ReadInt32()
	joiner, _ := announce.ReadInt32()
	assert.Equal(t, int32(2), joiner)
}

func TestJoinUnknownGame(t *testing.T) {
	_, reg := newTestDeps()
	c := newFakeClient(5)
	dispatch(t, reg, c, joinPacket(1234))

	reply := c.last(t)
	assert.Equal(t, byte(packet.TagJoinGame), reply.Tag())
	reason, _ := reply.ReadInt32()
	assert.Equal(t, int32(ReasonGameNotFound), reason)
	assert.Equal(t, packet.StateConnected, c.State())
}

func TestJoinFullGame(t *testing.T) {
	_, reg := newTestDeps()
	opts := game.DefaultOptions()
	opts.MaxPlayers = 1
	host := newFakeClient(1)
	code := hostGame(t, reg, host, opts)
	dispatch(t, reg, host, joinPacket(code))

	late := newFakeClient(2)
	dispatch(t, reg, late, joinPacket(code))
	reason, _ := late.last(t).ReadInt32()
	assert.Equal(t, int32(ReasonGameFull), reason)
}

func TestHostServerFull(t *testing.T) {
	deps, reg := newTestDeps()
	deps.Config.Game.MaxGames = 1
	hostGame(t, reg, newFakeClient(1), game.DefaultOptions())

	second := newFakeClient(2)
	dispatch(t, reg, second, hostPacket(game.DefaultOptions()))
	reply := second.last(t)
	assert.Equal(t, byte(packet.TagJoinGame), reply.Tag())
	reason, _ := reply.ReadInt32()
	assert.Equal(t, int32(ReasonServerFull), reason)
	assert.Equal(t, 1, deps.Games.Count())
}

func TestGameDataBeforeJoinRejected(t *testing.T) {
	_, reg := newTestDeps()
	c := newFakeClient(1)
	w := packet.NewWriter()
	w.StartMessage(byte(packet.TagGameData))
	w.WriteInt32(1)
	w.EndMessage()

	err := reg.DispatchPacket(c, c.State, w.Bytes())
	assert.NotEqual(t, nil, err)
}

func seatedGame(t *testing.T, ids ...int32) (*Deps, *packet.Registry, int32, []*fakeClient) {
	deps, reg := newTestDeps()
	clients := make([]*fakeClient, len(ids))
	for i, id := range ids {
		clients[i] = newFakeClient(id)
	}
	code := hostGame(t, reg, clients[0], game.DefaultOptions())
	for _, c := range clients {
		dispatch(t, reg, c, joinPacket(code))
	}
	return deps, reg, code, clients
}

func TestGameDataRelayedToOthers(t *testing.T) {
	deps, reg, code, clients := seatedGame(t, 1, 2, 3)

	w := packet.NewWriter()
	w.StartMessage(byte(packet.TagGameData))
	w.WriteInt32(code)
	w.StartMessage(byte(packet.GameDataSpawn))
	w.WritePackedUint32(3) // game_data
	w.WritePackedInt32(world.OwnerWorld)
	_ = w.WriteByte(0)
	w.WritePackedInt32(1)
	w.WritePackedUint32(10)
	w.StartMessage(1)
	w.EndMessage()
	w.EndMessage()
	w.EndMessage()
	data := w.Bytes()

	before := clients[0].count()
	dispatch(t, reg, clients[0], data)
	assert.Equal(t, before, clients[0].count())
	for _, c := range clients[1:] {
		assert.Equal(t, data, c.sent[len(c.sent)-1])
	}

	room, ok := deps.Games.Find(code)
	assert.T(t, ok)
	_, ok = room.Game.Object(10)
	assert.T(t, ok)
}

func TestGameDataToReachesTargetOnly(t *testing.T) {
	_, reg, code, clients := seatedGame(t, 1, 2, 3)
	before := clients[2].count()

	w := packet.NewWriter()
	w.StartMessage(byte(packet.TagGameDataTo))
	w.WriteInt32(code)
	w.WritePackedInt32(2)
	w.StartMessage(byte(packet.GameDataReady))
	w.WritePackedInt32(1)
	w.EndMessage()
	w.EndMessage()
	data := w.Bytes()

	dispatch(t, reg, clients[0], data)
	assert.Equal(t, data, clients[1].sent[len(clients[1].sent)-1])
	assert.Equal(t, before, clients[2].count())
}

func TestGameDataToUnknownTargetDropped(t *testing.T) {
	_, reg, code, clients := seatedGame(t, 1, 2)
	before := clients[1].count()

	w := packet.NewWriter()
	w.StartMessage(byte(packet.TagGameDataTo))
	w.WriteInt32(code)
	w.WritePackedInt32(99)
	w.EndMessage()

	dispatch(t, reg, clients[0], w.Bytes())
	assert.Equal(t, before, clients[1].count())
}

func TestMalformedGameDataReturnsError(t *testing.T) {
	_, reg, code, clients := seatedGame(t, 1)

	w := packet.NewWriter()
	w.StartMessage(byte(packet.TagGameData))
	w.WriteInt32(code)
	w.WriteBytes([]byte{0x09, 0x00}) // sub-message header cut short
	w.EndMessage()

	err := reg.DispatchPacket(clients[0], clients[0].State, w.Bytes())
	assert.NotEqual(t, nil, err)
	assert.T(t, packet.IsProtocolError(err))
}

func TestLeaveMigratesHost(t *testing.T) {
	deps, _, code, clients := seatedGame(t, 1, 2)

	HandleLeave(clients[0], deps)
	assert.Equal(t, gameDeparted, clients[0].GameCode())

	removed := clients[1].last(t)
	assert.Equal(t, byte(packet.TagRemovePlayer), removed.Tag())
	gotCode, _ := removed.ReadInt32()
	leaver, _ := removed.ReadInt32()
	newHost, _ := removed.ReadInt32()
	assert.Equal(t, code, gotCode)
	assert.Equal(t, int32(1), leaver)
	assert.Equal(t, int32(2), newHost)

	HandleLeave(clients[1], deps)
	assert.Equal(t, 0, deps.Games.Count())
}

func TestHostLeavingBeforeJoinClosesRoom(t *testing.T) {
	deps, reg := newTestDeps()
	deps.Config.Game.MaxGames = 1
	host := newFakeClient(1)
	hostGame(t, reg, host, game.DefaultOptions())
	assert.Equal(t, 1, deps.Games.Count())

	HandleLeave(host, deps)
	assert.Equal(t, 0, deps.Games.Count())

	// the freed slot can be hosted again
	next := newFakeClient(2)
	code := hostGame(t, reg, next, game.DefaultOptions())
	assert.NotEqual(t, int32(0), code)
	assert.Equal(t, 1, deps.Games.Count())
}

func TestLeaveKeepsJoinedRoomsOfCreator(t *testing.T) {
	deps, reg := newTestDeps()
	host := newFakeClient(1)
	code := hostGame(t, reg, host, game.DefaultOptions())
	guest := newFakeClient(2)
	dispatch(t, reg, guest, joinPacket(code))

	HandleLeave(host, deps)
	room, ok := deps.Games.Find(code)
	assert.T(t, ok)
	assert.Equal(t, int32(2), room.Players.Host())
}

func TestJoinAfterLeaveIgnored(t *testing.T) {
	deps, reg := newTestDeps()
	host := newFakeClient(1)
	code := hostGame(t, reg, host, game.DefaultOptions())
	dispatch(t, reg, host, joinPacket(code))

	gone := newFakeClient(2)
	HandleLeave(gone, deps)
	before := gone.count()
	dispatch(t, reg, gone, joinPacket(code))

	assert.Equal(t, before, gone.count())
	assert.Equal(t, packet.StateConnected, gone.State())
	room, _ := deps.Games.Find(code)
	_, seated := room.Players.FindPlayer(2)
	assert.T(t, !seated)
}

func TestSecondJoinIgnored(t *testing.T) {
	deps, reg := newTestDeps()
	host := newFakeClient(1)
	first := hostGame(t, reg, host, game.DefaultOptions())
	second := hostGame(t, reg, newFakeClient(9), game.DefaultOptions())
	dispatch(t, reg, host, joinPacket(first))

	// a second JoinGame while seated is dropped by the state filter, so
	// drive the handler directly
	err := HandleJoinGame(host, packet.NewReader([]byte{
		byte(second), byte(second >> 8), byte(second >> 16), byte(second >> 24),
	}), deps)
	assert.Equal(t, nil, err)
	assert.Equal(t, first, host.GameCode())
	room, _ := deps.Games.Find(second)
	assert.Equal(t, 0, room.Players.Len())
}

func TestConcurrentJoinAndLeaveLeavesNoGhosts(t *testing.T) {
	deps, reg := newTestDeps()
	host := newFakeClient(1)
	code := hostGame(t, reg, host, game.DefaultOptions())
	dispatch(t, reg, host, joinPacket(code))

	const n = 32
	clients := make([]*fakeClient, n)
	var wg sync.WaitGroup
	for i := range clients {
		c := newFakeClient(int32(i + 2))
		clients[i] = c
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = reg.DispatchPacket(c, c.State, joinPacket(code))
		}()
		go func() {
			defer wg.Done()
			HandleLeave(c, deps)
		}()
	}
	wg.Wait()

	room, ok := deps.Games.Find(code)
	assert.T(t, ok)
	assert.Equal(t, 1, room.Players.Len())
	assert.Equal(t, int32(1), room.Players.Host())
	for _, c := range clients {
		assert.Equal(t, gameDeparted, c.GameCode())
	}
}
