package server

// Room is a named broadcast group. Rooms are created lazily on first join
// and never deleted; an empty room is an acceptable leftover given the small
// cardinality of room names.
//
// Every method must be called with the registry mutex held: the member set
// has no lock of its own.
type Room struct {
	name    string
	members map[string]*Session
}

func newRoom(name string) *Room {
	return &Room{name: name, members: make(map[string]*Session)}
}

func (r *Room) Name() string { return r.name }

func (r *Room) add(s *Session) {
	r.members[s.name] = s
}

func (r *Room) remove(s *Session) {
	delete(r.members, s.name)
}

func (r *Room) contains(s *Session) bool {
	member, ok := r.members[s.name]
	return ok && member == s
}

// sessions returns a snapshot of the member set so callers can deliver
// outside the map iteration without fearing concurrent mutation.
func (r *Room) sessions() []*Session {
	snapshot := make([]*Session, 0, len(r.members))
	for _, member := range r.members {
		snapshot = append(snapshot, member)
	}
	return snapshot
}
