package model

// ActorKey is the fasthttp user value the auth middleware stores the caller under.
const ActorKey = "actor"

// Actor is the authenticated caller of a request together with the tenant the
// request resolved to. Public routes carry an anonymous actor (UserID 0).
type Actor struct {
	UserID      int64
	Email       string
	Phone       string
	Role        Role
	TenantID    *int64
	BranchID    *int64
	IsSuperuser bool
	IP          string
	UserAgent   string
}

// IsMaster reports whether the actor sees across tenants.
func (a *Actor) IsMaster() bool {
	return a != nil && (a.Role == RoleMasterAdmin || a.IsSuperuser)
}

func (a *Actor) Authenticated() bool {
	return a != nil && a.UserID > 0
}

// Identity is what catalog rows record in created_user / modified_user.
func (a *Actor) Identity() string {
	switch {
	case a == nil:
		return "System"
	case a.Email != "":
		return a.Email
	case a.Phone != "":
		return a.Phone
	}
	return "System"
}

func (a *Actor) UserRef() *int64 {
	if !a.Authenticated() {
		return nil
	}
	id := a.UserID
	return &id
}
