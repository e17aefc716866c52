package world

import "github.com/innernet/server/internal/net/packet"

// StateBlob keeps the last payload each object received without
// interpreting it. It is the default Behavior for every kind; the server
// relays state, it does not simulate it.
type StateBlob struct {
	State   []byte
	Updates int
	Rpcs    int
	LastRpc byte
	Spawned bool
}

func (s *StateBlob) Deserialize(r *packet.Reader, initial bool) error {
	s.State = append(s.State[:0], r.Unread()...)
	if initial {
		s.Spawned = true
	} else {
		s.Updates++
	}
	return nil
}

func (s *StateBlob) HandleRpc(callID byte, r *packet.Reader) error {
	s.Rpcs++
	s.LastRpc = callID
	return nil
}

// constructors is the static kind -> behavior table. Adding a kind means
// adding an entry here; nothing is looked up by name at runtime.
var constructors = map[Kind]func() Behavior{
	KindShipStatus:       newStateBlob,
	KindMeetingHud:       newStateBlob,
	KindLobbyBehaviour:   newStateBlob,
	KindGameData:         newStateBlob,
	KindPlayerControl:    newStateBlob,
	KindPlayerPhysics:    newStateBlob,
	KindNetworkTransform: newStateBlob,
	KindHeadQuarters:     newStateBlob,
	KindPlanetMap:        newStateBlob,
	KindAprilShipStatus:  newStateBlob,
}

func newStateBlob() Behavior { return &StateBlob{} }

// NewBehavior constructs the behavior for kind, or false if the kind has none.
func NewBehavior(kind Kind) (Behavior, bool) {
	ctor, ok := constructors[kind]
	if !ok {
		return nil, false
	}
	return ctor(), true
}
