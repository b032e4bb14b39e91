package mutation

import "github.com/google/uuid"

// ticket identifies one in-flight mutation and the collection version it targeted.
type ticket struct {
	id      string
	version uint64
}

// guard allows at most one pending mutation per collection. It is not
// synchronized itself; the owning view holds its lock around every call.
type guard struct {
	version uint64
	pending *ticket
}

func (g *guard) acquire() (ticket, error) {
	if g.pending != nil {
		return ticket{}, ErrOperationInProgress
	}
	t := ticket{id: uuid.NewString(), version: g.version}
	g.pending = &t
	return t, nil
}

// release frees the guard and reports whether the ticket still targets the current version.
func (g *guard) release(t ticket) bool {
	if g.pending != nil && g.pending.id == t.id {
		g.pending = nil
	}
	return t.version == g.version
}

func (g *guard) busy() bool {
	return g.pending != nil
}

// invalidate makes every outstanding ticket stale.
func (g *guard) invalidate() {
	g.version++
}
