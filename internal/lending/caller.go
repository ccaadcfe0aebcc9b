package lending

import "github.com/erazemk/knjiznica/internal/model"

// Caller is the authenticated identity an operation runs as.
// MemberID is zero for users without a member profile.
type Caller struct {
	UserID   int64
	Username string
	Role     string
	MemberID int64
}

// IsAdmin reports whether the caller acts for the library.
func (c Caller) IsAdmin() bool {
	return c.Role == model.RoleAdmin
}

// Scope restricts queries to what a caller may see: everything for admins,
// only their own records for members.
type Scope struct {
	All      bool
	MemberID int64
}

// Scope returns the caller's visibility.
func (c Caller) Scope() (Scope, error) {
	if c.IsAdmin() {
		return Scope{All: true}, nil
	}
	if c.MemberID == 0 {
		return Scope{}, ErrNoMemberProfile
	}
	return Scope{MemberID: c.MemberID}, nil
}

// Owns reports whether the scope covers records of the given member.
func (s Scope) Owns(memberID int64) bool {
	return s.All || s.MemberID == memberID
}

// filter narrows a requested member filter to the scope. A member asking
// for someone else's records gets ErrForbidden.
func (s Scope) filter(requested int64) (int64, error) {
	if s.All {
		return requested, nil
	}
	if requested != 0 && requested != s.MemberID {
		return 0, ErrForbidden
	}
	return s.MemberID, nil
}

func requireAdmin(c Caller) error {
	if !c.IsAdmin() {
		return ErrAdminOnly
	}
	return nil
}
