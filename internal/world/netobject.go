package world

import (
	"fmt"
	"math"

	"github.com/innernet/server/internal/net/packet"
)

// InvalidNetID marks an object that is not (or no longer) registered.
const InvalidNetID uint32 = math.MaxUint32

// OwnerWorld is the owner id of objects no player controls.
const OwnerWorld int32 = -2

// SpawnFlags is the flag byte sent with a spawn.
type SpawnFlags byte

const (
	SpawnFlagNone            SpawnFlags = 0
	SpawnFlagClientCharacter SpawnFlags = 1
)

// Kind identifies which component an object instance is.
type Kind int

const (
	KindShipStatus Kind = iota
	KindMeetingHud
	KindLobbyBehaviour
	KindGameData
	KindPlayerControl
	KindPlayerPhysics
	KindNetworkTransform
	KindHeadQuarters
	KindPlanetMap
	KindAprilShipStatus
)

var kindNames = map[Kind]string{
	KindShipStatus:       "ship_status",
	KindMeetingHud:       "meeting_hud",
	KindLobbyBehaviour:   "lobby_behaviour",
	KindGameData:         "game_data",
	KindPlayerControl:    "player_control",
	KindPlayerPhysics:    "player_physics",
	KindNetworkTransform: "network_transform",
	KindHeadQuarters:     "headquarters",
	KindPlanetMap:        "planet_map",
	KindAprilShipStatus:  "april_ship_status",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a kind name as used in data files back to its Kind.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// IsShipStatus reports whether k is ship status or one of its map variants.
func (k Kind) IsShipStatus() bool {
	switch k {
	case KindShipStatus, KindHeadQuarters, KindPlanetMap, KindAprilShipStatus:
		return true
	}
	return false
}

// Behavior is the per-object state capability. The dispatcher only ever
// hands it a reader bounded to that object's own sub-message.
type Behavior interface {
	Deserialize(r *packet.Reader, initial bool) error
	HandleRpc(callID byte, r *packet.Reader) error
}

// NetObject is one replicated object instance in a game.
type NetObject struct {
	NetID    uint32
	OwnerID  int32
	Flags    SpawnFlags
	Kind     Kind
	Behavior Behavior
}

// IsRegistered reports whether the object currently holds a valid net id.
func (o *NetObject) IsRegistered() bool {
	return o.NetID != InvalidNetID
}

// IsWorldOwned reports whether no player owns the object.
func (o *NetObject) IsWorldOwned() bool {
	return o.OwnerID == OwnerWorld
}

func (o *NetObject) String() string {
	return o.Info().String()
}

// ObjectInfo is a copy of an object's identity, safe to keep after the
// owning game's lock is released.
type ObjectInfo struct {
	NetID   uint32
	OwnerID int32
	Flags   SpawnFlags
	Kind    Kind
}

// Info copies the object's identity fields.
func (o *NetObject) Info() ObjectInfo {
	return ObjectInfo{NetID: o.NetID, OwnerID: o.OwnerID, Flags: o.Flags, Kind: o.Kind}
}

func (i ObjectInfo) String() string {
	return fmt.Sprintf("%s#%d(owner=%d)", i.Kind, i.NetID, i.OwnerID)
}
