package world

// ObjectRegistry owns the net id -> object mapping for one game and keeps
// spawn order. It is not goroutine-safe; the owning game serialises access.
type ObjectRegistry struct {
	byID    map[uint32]*NetObject
	ordered []*NetObject
}

func NewObjectRegistry() *ObjectRegistry {
	return &ObjectRegistry{
		byID:    make(map[uint32]*NetObject, 64),
		ordered: make([]*NetObject, 0, 64),
	}
}

// Add registers obj under obj.NetID. It returns false without mutating
// anything if the id is the sentinel or already taken.
func (r *ObjectRegistry) Add(obj *NetObject) bool {
	if obj.NetID == InvalidNetID {
		return false
	}
	if _, ok := r.byID[obj.NetID]; ok {
		return false
	}
	r.byID[obj.NetID] = obj
	r.ordered = append(r.ordered, obj)
	return true
}

// Remove unregisters obj and resets its NetID to InvalidNetID so stale
// references cannot resolve to a reused id.
func (r *ObjectRegistry) Remove(obj *NetObject) {
	for i, o := range r.ordered {
		if o == obj {
			r.ordered = append(r.ordered[:i], r.ordered[i+1:]...)
			break
		}
	}
	if cur, ok := r.byID[obj.NetID]; ok && cur == obj {
		delete(r.byID, obj.NetID)
	}
	obj.NetID = InvalidNetID
}

// Get returns the object registered under netID.
func (r *ObjectRegistry) Get(netID uint32) (*NetObject, bool) {
	obj, ok := r.byID[netID]
	return obj, ok
}

// All returns a copy of the live objects in insertion order.
func (r *ObjectRegistry) All() []*NetObject {
	out := make([]*NetObject, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of registered objects.
func (r *ObjectRegistry) Len() int {
	return len(r.ordered)
}

// Reset drops every object, invalidating their ids. Called when the game ends.
func (r *ObjectRegistry) Reset() {
	for _, o := range r.ordered {
		o.NetID = InvalidNetID
	}
	r.byID = make(map[uint32]*NetObject, 64)
	r.ordered = make([]*NetObject, 0, 64)
}
