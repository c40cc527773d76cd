package ports

import "time"

// AdminClaims are the verified claims of a management-plane bearer token.
type AdminClaims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

type AdminTokenVerifier interface {
	Verify(raw string) (AdminClaims, error)
}
