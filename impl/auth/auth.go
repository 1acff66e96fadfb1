package auth

import (
	"fmt"
	"time"

	"matcore/entity"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried inside a signed bearer token. The issuer is external;
// this side only verifies.
type Claims struct {
	AccountId string      `json:"account_id"`
	Email     string      `json:"email"`
	Role      entity.Role `json:"role"`
	jwt.RegisteredClaims
}

// Verifier resolves bearer tokens to identities. The check is stateless:
// signature, expiry and role validity, no store access.
type Verifier struct {
	secret []byte
	leeway time.Duration
}

func New(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		leeway: 30 * time.Second,
	}
}

func (v *Verifier) Verify(token string) (*entity.Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	if claims.AccountId == "" {
		return nil, fmt.Errorf("token carries no account id")
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("unknown role: %s", claims.Role)
	}
	return &entity.Identity{
		AccountId: claims.AccountId,
		Email:     claims.Email,
		Role:      claims.Role,
	}, nil
}

func (v *Verifier) key(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return v.secret, nil
}
