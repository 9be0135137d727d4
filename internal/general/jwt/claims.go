package jwt

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Role is the principal kind carried in a token. The dispatch core never
// inspects credentials; it only trusts the (role, subject) pair the gate
// extracted.
type Role string

const (
	RolePassenger Role = "PASSENGER"
	RoleDriver    Role = "DRIVER"
)

// Valid reports whether the role is one of the known principal kinds.
func (r Role) Valid() bool {
	return r == RolePassenger || r == RoleDriver
}

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// ParseRole normalizes and validates a role string.
func ParseRole(in string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(in)))
	return r, r.Valid()
}

// Claims defines our canonical JWT claims payload.
type Claims struct {
	Role Role `json:"role"` // PASSENGER | DRIVER
	jwtlib.RegisteredClaims
}

// ensure Claims implements jwtlib.Claims interface
var _ jwtlib.Claims = (*Claims)(nil)

// NewUserClaims constructs end-user claims (passenger/driver).
func NewUserClaims(userID string, role Role, ttl time.Duration) *Claims {
	now := time.Now().UTC()
	return &Claims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
}
