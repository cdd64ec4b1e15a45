package domain

// SystemActorID marks transitions performed by the service itself.
const SystemActorID = "SYSTEM"

// Actor is the platform member performing an interaction, as vouched for by
// the gateway token.
type Actor struct {
	TenantID      string
	UserID        string
	UserName      string
	RoleIDs       []string
	Administrator bool
	TenantOwner   bool
}

// HasRole reports whether the actor holds roleID.
func (a Actor) HasRole(roleID string) bool {
	for _, r := range a.RoleIDs {
		if r == roleID {
			return true
		}
	}
	return false
}
