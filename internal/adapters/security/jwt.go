package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/ports"
)

// MinSecretLength is the shortest HMAC secret accepted for admin tokens.
const MinSecretLength = 32

type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// HMACVerifier validates HS256 management-plane tokens. Tokens are minted out of band
// with the shared secret; Sign produces the same format.
type HMACVerifier struct {
	secret []byte
	issuer string
	nowFn  func() time.Time
}

func NewHMACVerifier(secret, issuer string) (*HMACVerifier, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("admin jwt secret must be at least %d bytes", MinSecretLength)
	}
	return &HMACVerifier{
		secret: []byte(secret),
		issuer: issuer,
		nowFn:  time.Now,
	}, nil
}

func (v *HMACVerifier) Verify(raw string) (ports.AdminClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.nowFn),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &adminClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return ports.AdminClaims{}, err
	}
	if !token.Valid {
		return ports.AdminClaims{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return ports.AdminClaims{}, errors.New("token subject is required")
	}

	out := ports.AdminClaims{
		Subject: claims.Subject,
		Role:    claims.Role,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// Sign mints an admin token for subject with the given role and lifetime.
func (v *HMACVerifier) Sign(subject, role string, ttl time.Duration) (string, error) {
	now := v.nowFn()
	claims := adminClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
