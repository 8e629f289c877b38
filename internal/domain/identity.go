package domain

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity is the authenticated caller, resolved outside the core.
type Identity struct {
	UserID int64
	Role   Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CanAccess reports whether the caller may read or modify a resource owned by ownerID.
func (i Identity) CanAccess(ownerID int64) bool {
	return i.IsAdmin() || i.UserID == ownerID
}
