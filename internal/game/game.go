package game

import (
	"sync"

	"github.com/innernet/server/internal/net/packet"
	"github.com/innernet/server/internal/world"
	"go.uber.org/zap"
)

// Game is one session's replicated object state. All mutation goes through
// HandleBatch/Process, which hold the write lock for the whole batch, so a
// spawn and a despawn of the same id never interleave. Readers take the
// read lock and receive snapshots.
type Game struct {
	Code int32

	mu      sync.RWMutex
	objects *world.ObjectRegistry
	spawns  *world.SpawnTable
	players PlayerLookup
	options *Options
	hooks   Hooks
	log     *zap.Logger
}

// New creates a game. spawns is shared read-only between games.
func New(code int32, spawns *world.SpawnTable, players PlayerLookup, hooks Hooks, log *zap.Logger) *Game {
	return &Game{
		Code:    code,
		objects: world.NewObjectRegistry(),
		spawns:  spawns,
		players: players,
		options: DefaultOptions(),
		hooks:   hooks.withDefaults(),
		log:     log.With(zap.Int32("game", code)),
	}
}

// Object returns a copy of the identity of the object registered under netID.
func (g *Game) Object(netID uint32) (world.ObjectInfo, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	obj, ok := g.objects.Get(netID)
	if !ok {
		return world.ObjectInfo{}, false
	}
	return obj.Info(), true
}

// Objects returns copies of the live objects' identities in spawn order.
func (g *Game) Objects() []world.ObjectInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	all := g.objects.All()
	out := make([]world.ObjectInfo, len(all))
	for i, obj := range all {
		out[i] = obj.Info()
	}
	return out
}

// View runs fn with the registry under the read lock. fn must not retain
// the registry or its objects after returning.
func (g *Game) View(fn func(reg *world.ObjectRegistry)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn(g.objects)
}

// ObjectCount returns the number of live objects.
func (g *Game) ObjectCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.objects.Len()
}

// Options returns the current game options.
func (g *Game) Options() *Options {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.options
}

// SetOptions replaces the game options.
func (g *Game) SetOptions(opts *Options) {
	g.mu.Lock()
	g.options = opts
	g.mu.Unlock()
	g.hooks.Options.OnOptionsChanged(g.Code, opts)
}

// Close discards the object registry. The game must not be used afterwards.
func (g *Game) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects.Reset()
}

// HandleGameData processes the batch remaining in r. See Process.
func (g *Game) HandleGameData(r *packet.Reader, sender Player, targeted bool) error {
	_, err := g.Process(r, sender, targeted)
	return err
}

// HandleBatch processes one raw game data batch.
func (g *Game) HandleBatch(batch []byte, sender Player, targeted bool) error {
	return g.HandleGameData(packet.NewReader(batch), sender, targeted)
}
