package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/V4T54L/tradedesk/internal/domain"
)

const jwtIssuer = "tradedesk"

// Claims carries the tenant identifier in hex. A signed token is as
// sensitive as the identifier itself.
type Claims struct {
	Identifier string `json:"tid"`
	jwt.RegisteredClaims
}

// JWTResolver accepts HS256 tokens signed with a shared secret.
type JWTResolver struct {
	secret []byte
	now    func() time.Time
}

func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for id that expires after ttl.
func (r *JWTResolver) Issue(id domain.TenantIdentity, ttl time.Duration) (string, error) {
	now := r.now()
	claims := &Claims{
		Identifier: hex.EncodeToString(id[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jwtIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}

func (r *JWTResolver) Resolve(ctx context.Context, token string) (domain.TenantIdentity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(jwtIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.TenantIdentity{}, domain.NotFoundf("token expired")
		}
		return domain.TenantIdentity{}, domain.NotFoundf("token rejected")
	}
	if !parsed.Valid {
		return domain.TenantIdentity{}, domain.NotFoundf("token rejected")
	}
	id, err := domain.ParseTenantIdentity(claims.Identifier)
	if err != nil {
		return domain.TenantIdentity{}, domain.NotFoundf("token does not carry a tenant identifier")
	}
	return id, nil
}
