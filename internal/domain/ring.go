package domain

// ringNode is one arena slot. Dead slots are never reused so a slot index
// stays valid for the lifetime of the game.
type ringNode struct {
	player *Player
	next   int
	prev   int
	live   bool
}

// Ring is the circular seating order of a game. Players are stored in a flat
// arena and linked by slot index; current is the slot holding the turn, or -1
// when the ring is empty.
type Ring struct {
	nodes   []ringNode
	current int
	size    int
}

// NewRing returns an empty ring.
func NewRing() *Ring {
	return &Ring{current: -1}
}

// Insert seats p directly behind the current turn holder, so it acts last in
// the running rotation. In an empty ring p becomes the sole member and holds
// the turn.
func (r *Ring) Insert(p *Player) int {
	slot := len(r.nodes)
	r.nodes = append(r.nodes, ringNode{player: p, live: true})
	if r.current < 0 {
		r.nodes[slot].next = slot
		r.nodes[slot].prev = slot
		r.current = slot
	} else {
		cur := r.current
		prev := r.nodes[cur].prev
		r.nodes[slot].next = cur
		r.nodes[slot].prev = prev
		r.nodes[prev].next = slot
		r.nodes[cur].prev = slot
	}
	r.size++
	p.slot = slot
	return slot
}

// Remove unlinks the player at slot and closes the gap. Removing the turn
// holder hands the turn to its next neighbour; removing the last member
// empties the ring.
func (r *Ring) Remove(slot int) {
	if !r.live(slot) {
		panic("ring: remove of unseated slot")
	}
	n := r.nodes[slot]
	if r.size == 1 {
		r.current = -1
	} else {
		r.nodes[n.prev].next = n.next
		r.nodes[n.next].prev = n.prev
		if r.current == slot {
			r.current = n.next
		}
	}
	r.nodes[slot] = ringNode{player: n.player, next: -1, prev: -1}
	n.player.slot = -1
	r.size--
}

// Advance moves the turn to the next neighbour.
func (r *Ring) Advance() {
	if r.current < 0 {
		panic("ring: advance on empty ring")
	}
	r.current = r.nodes[r.current].next
}

// Current returns the turn holder or nil for an empty ring.
func (r *Ring) Current() *Player {
	if r.current < 0 {
		return nil
	}
	return r.nodes[r.current].player
}

// SetCurrent hands the turn to the player seated at slot.
func (r *Ring) SetCurrent(slot int) {
	if !r.live(slot) {
		panic("ring: set current to unseated slot")
	}
	r.current = slot
}

// Next returns the clockwise neighbour of slot.
func (r *Ring) Next(slot int) *Player {
	return r.nodes[r.nodes[r.mustLive(slot)].next].player
}

// Prev returns the counter-clockwise neighbour of slot.
func (r *Ring) Prev(slot int) *Player {
	return r.nodes[r.nodes[r.mustLive(slot)].prev].player
}

// Len returns the number of seated players.
func (r *Ring) Len() int {
	return r.size
}

// Players lists the seated players in turn order starting at the turn holder.
func (r *Ring) Players() []*Player {
	if r.current < 0 {
		return nil
	}
	out := make([]*Player, 0, r.size)
	slot := r.current
	for i := 0; i < r.size; i++ {
		out = append(out, r.nodes[slot].player)
		slot = r.nodes[slot].next
		if slot == r.current {
			break
		}
	}
	return out
}

func (r *Ring) live(slot int) bool {
	return slot >= 0 && slot < len(r.nodes) && r.nodes[slot].live
}

func (r *Ring) mustLive(slot int) int {
	if !r.live(slot) {
		panic("ring: neighbour lookup on unseated slot")
	}
	return slot
}
