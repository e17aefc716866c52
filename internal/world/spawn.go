package world

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnknownSpawnable is returned for a spawn index outside the table.
var ErrUnknownSpawnable = errors.New("unknown spawnable")

// SpawnTemplate declares what one wire spawn index decomposes into. The
// first component is the root object; the rest follow in wire order.
type SpawnTemplate struct {
	Name       string
	Components []Kind
}

// Kind returns the kind of the root component.
func (t SpawnTemplate) Kind() Kind {
	return t.Components[0]
}

// SpawnTable maps wire spawn indexes to templates. It is built once at
// startup and only read afterwards, so it is safe to share between games.
type SpawnTable struct {
	templates []SpawnTemplate
}

// NewSpawnTable validates templates and returns a table indexed by position.
func NewSpawnTable(templates []SpawnTemplate) (*SpawnTable, error) {
	if len(templates) == 0 {
		return nil, fmt.Errorf("spawn table is empty")
	}
	out := make([]SpawnTemplate, len(templates))
	for i, t := range templates {
		if len(t.Components) == 0 {
			return nil, fmt.Errorf("spawnable %d (%s) has no components", i, t.Name)
		}
		for _, k := range t.Components {
			if _, ok := constructors[k]; !ok {
				return nil, fmt.Errorf("spawnable %d (%s): no behavior for %s", i, t.Name, k)
			}
		}
		comps := make([]Kind, len(t.Components))
		copy(comps, t.Components)
		out[i] = SpawnTemplate{Name: t.Name, Components: comps}
	}
	return &SpawnTable{templates: out}, nil
}

// DefaultSpawnTemplates is the stock client's spawnable list.
func DefaultSpawnTemplates() []SpawnTemplate {
	return []SpawnTemplate{
		{Name: "ship_status", Components: []Kind{KindShipStatus}},
		{Name: "meeting_hud", Components: []Kind{KindMeetingHud}},
		{Name: "lobby_behaviour", Components: []Kind{KindLobbyBehaviour}},
		{Name: "game_data", Components: []Kind{KindGameData}},
		{Name: "player_control", Components: []Kind{KindPlayerControl, KindPlayerPhysics, KindNetworkTransform}},
		{Name: "headquarters", Components: []Kind{KindHeadQuarters}},
		{Name: "planet_map", Components: []Kind{KindPlanetMap}},
		{Name: "april_ship_status", Components: []Kind{KindAprilShipStatus}},
	}
}

// DefaultSpawnTable returns the table built from DefaultSpawnTemplates.
func DefaultSpawnTable() *SpawnTable {
	t, err := NewSpawnTable(DefaultSpawnTemplates())
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of spawnable indexes.
func (t *SpawnTable) Len() int {
	return len(t.templates)
}

// Template returns the template at index.
func (t *SpawnTable) Template(index uint32) (SpawnTemplate, bool) {
	if index >= uint32(len(t.templates)) {
		return SpawnTemplate{}, false
	}
	return t.templates[index], true
}

// SpawnedObject is a freshly built, unregistered object tree.
type SpawnedObject struct {
	Index      uint32
	Template   SpawnTemplate
	Components []*NetObject
}

// Root returns the root component.
func (s *SpawnedObject) Root() *NetObject {
	return s.Components[0]
}

// Resolve builds the object tree for a wire spawn index. Components get
// ownerID but no net id; the caller assigns ids from the wire one at a time.
func (t *SpawnTable) Resolve(index uint32, ownerID int32) (*SpawnedObject, error) {
	tmpl, ok := t.Template(index)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSpawnable, "index %d (table has %d)", index, len(t.templates))
	}
	comps := make([]*NetObject, len(tmpl.Components))
	for i, kind := range tmpl.Components {
		b, _ := NewBehavior(kind)
		comps[i] = &NetObject{
			NetID:    InvalidNetID,
			OwnerID:  ownerID,
			Kind:     kind,
			Behavior: b,
		}
	}
	return &SpawnedObject{Index: index, Template: tmpl, Components: comps}, nil
}
