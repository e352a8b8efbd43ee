package jwt

type Role int

const (
	RoleStaff Role = iota
	RoleCustomer
	RoleGuest
)

// TokenSubject is what a parsed token identifies: the staff member or the
// customer/guest on the user side of a session. Issuance lives in the
// external auth service; this package only mirrors the claim shape.
type TokenSubject struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}
