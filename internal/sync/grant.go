package sync

// Grant is the capability under which an event is processed. Webhook
// deliveries arrive from an unauthenticated external system, so the boundary
// layer mints a narrowly scoped system grant for the duration of one event
// instead of running the engine with ambient privilege.
type Grant struct {
	system bool
	origin string
}

// NewSystemGrant returns a grant permitting privileged writes on behalf of
// the named origin ("webhook", "batch", "admin").
func NewSystemGrant(origin string) Grant {
	return Grant{system: true, origin: origin}
}

// PermitsWrite reports whether the grant allows store mutations.
func (g Grant) PermitsWrite() bool {
	return g.system
}

// Origin names the entry point the grant was minted for; it is recorded in
// the sync log alongside each outcome.
func (g Grant) Origin() string {
	if g.origin == "" {
		return "unknown"
	}
	return g.origin
}
