package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/domain"
	"github.com/parlance-ai/parlance/internal/ports"
)

// Token scopes carried on the wire.
const (
	ScopeClient = "client"
	ScopeUser   = "user"
)

// JWTVerifier resolves request auth tokens to a trust level by validating
// them as HMAC-signed JWTs. Failed verification degrades trust, it never
// fails a turn; the orchestrator handles the error the same way.
type JWTVerifier struct {
	secret []byte
	log    *zap.Logger
}

func NewJWTVerifier(secret string, log *zap.Logger) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), log: log}
}

func (v *JWTVerifier) Verify(ctx context.Context, tokens []domain.AuthToken, clientID, userID string) (ports.AuthLevel, error) {
	clientOK := false
	userOK := false

	for _, t := range tokens {
		subject, err := v.validate(t.Token)
		if err != nil {
			v.log.Debug("Auth token rejected",
				zap.String("scope", t.Scope),
				zap.Error(err))
			continue
		}
		switch t.Scope {
		case ScopeClient:
			if subject == clientID {
				clientOK = true
			}
		case ScopeUser:
			if subject == userID {
				userOK = true
			}
		}
	}

	switch {
	case clientOK && userOK:
		return ports.AuthLevelFull, nil
	case userOK:
		return ports.AuthLevelUserVerified, nil
	case clientOK:
		return ports.AuthLevelClientVerified, nil
	default:
		return ports.AuthLevelNone, nil
	}
}

// validate parses one token and returns its subject claim.
func (v *JWTVerifier) validate(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return subject, nil
}
