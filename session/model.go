package session

// Identity is the authenticated user's profile snapshot. It is fetched whole
// on every refresh and never partially patched.
type Identity struct {
	ID       int64    `json:"id"`
	Email    string   `json:"email"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	Active   bool     `json:"is_active"`
}

// HasRole reports whether the identity carries the given role string.
func (id *Identity) HasRole(role string) bool {
	if id == nil {
		return false
	}
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity's role set intersects roles.
// An empty required set always passes.
func (id *Identity) HasAnyRole(roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if id.HasRole(r) {
			return true
		}
	}
	return false
}

// Snapshot is a point-in-time read of the session state.
//
// Loading is true only while Bootstrap or at least one Refresh is in flight.
type Snapshot struct {
	User    *Identity
	Loading bool
}

// Authenticated reports whether a user identity is present.
func (s Snapshot) Authenticated() bool {
	return s.User != nil
}

func cloneIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	out := *id
	out.Roles = append([]string(nil), id.Roles...)
	return &out
}
