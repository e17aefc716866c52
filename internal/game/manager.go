package game

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/innernet/server/internal/world"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Roster is the set of players in one game, in join order. The first
// player to join is the host.
type Roster struct {
	mu      sync.RWMutex
	players map[int32]Player
	order   []Player
}

func NewRoster() *Roster {
	return &Roster{players: make(map[int32]Player, 10)}
}

// FindPlayer implements PlayerLookup.
func (r *Roster) FindPlayer(id int32) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	return p, ok
}

var (
	ErrRosterFull    = errors.New("game is full")
	ErrAlreadyJoined = errors.New("player already in game")
)

// Add inserts p unless the roster already holds limit players or a player
// with the same id. A limit of 0 or less means no limit.
func (r *Roster) Add(p Player, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[p.ClientID()]; ok {
		return ErrAlreadyJoined
	}
	if limit > 0 && len(r.order) >= limit {
		return ErrRosterFull
	}
	r.players[p.ClientID()] = p
	r.order = append(r.order, p)
	return nil
}

// Remove drops the player with id. The next player in join order becomes host.
func (r *Roster) Remove(id int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[id]; !ok {
		return
	}
	delete(r.players, id)
	for i, p := range r.order {
		if p.ClientID() == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Host returns the host's client id, or -1 if the roster is empty.
func (r *Roster) Host() int32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return -1
	}
	return r.order[0].ClientID()
}

// All returns the players in join order.
func (r *Roster) All() []Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Player, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of players.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Room pairs a game with its roster.
type Room struct {
	Game    *Game
	Players *Roster
	// CreatedBy is the client that hosted the room.
	CreatedBy int32
}

// Manager owns every live room, keyed by game code.
type Manager struct {
	mu     sync.RWMutex
	rooms  map[int32]*Room
	spawns *world.SpawnTable
	hooks  Hooks
	log    *zap.Logger
}

func NewManager(spawns *world.SpawnTable, hooks Hooks, log *zap.Logger) *Manager {
	return &Manager{
		rooms:  make(map[int32]*Room),
		spawns: spawns,
		hooks:  hooks,
		log:    log,
	}
}

// Create opens a room with a fresh random code on behalf of creator.
func (m *Manager) Create(opts *Options, creator int32) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	const maxAttempts = 32
	for i := 0; i < maxAttempts; i++ {
		code := rand.Int31()
		if code == 0 {
			continue
		}
		if _, taken := m.rooms[code]; taken {
			continue
		}
		roster := NewRoster()
		g := New(code, m.spawns, roster, m.hooks, m.log)
		room := &Room{Game: g, Players: roster, CreatedBy: creator}
		m.rooms[code] = room
		if opts != nil {
			g.SetOptions(opts)
		}
		m.log.Info("game created",
			zap.Int32("game", code),
			zap.Int32("creator", creator),
			zap.Uint8("max_players", g.Options().MaxPlayers),
		)
		return room, nil
	}
	return nil, fmt.Errorf("no free game code after %d attempts", maxAttempts)
}

// Find returns the room with code.
func (m *Manager) Find(code int32) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[code]
	return room, ok
}

// Leave removes a player from a room and closes the room once it is empty.
func (m *Manager) Leave(code, clientID int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[code]
	if !ok {
		return
	}
	room.Players.Remove(clientID)
	if room.Players.Len() == 0 {
		m.closeLocked(code, room)
	}
}

// Abandon closes every room creator hosted that nobody has joined yet.
// It returns the number of rooms closed.
func (m *Manager) Abandon(creator int32) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for code, room := range m.rooms {
		if room.CreatedBy == creator && room.Players.Len() == 0 {
			m.closeLocked(code, room)
			n++
		}
	}
	return n
}

func (m *Manager) closeLocked(code int32, room *Room) {
	room.Game.Close()
	delete(m.rooms, code)
	m.log.Info("game closed", zap.Int32("game", code))
}

// Count returns the number of live rooms.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
