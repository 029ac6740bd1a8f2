package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"salon-chat/config"
	"salon-chat/internal/domain/conversation"
	salon_errors "salon-chat/pkg/errors"
)

// AuthService validates caller credentials. Token issuance and session
// management live in the account service; this side only parses and
// verifies what that service signed.
type AuthService struct {
	jwtSecret []byte
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{jwtSecret: []byte(cfg.JWTSecret)}
}

// AccessClaims carries the caller identity and role claim that every
// connection and request must present.
type AccessClaims struct {
	ParticipantID string `json:"sub"`
	Role          string `json:"role"`
	jwt.RegisteredClaims
}

func (s *AuthService) ParseAccessToken(tokenString string) (*AccessClaims, error) {
	if tokenString == "" {
		return nil, salon_errors.ErrUnauthorized
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, salon_errors.ErrUnauthorized
	}
	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok {
		return nil, salon_errors.ErrUnauthorized
	}
	return claims, nil
}

// Identity resolves the parsed claims into a participant id and role.
func (s *AuthService) Identity(claims *AccessClaims) (uuid.UUID, conversation.Role, error) {
	id, err := uuid.Parse(claims.ParticipantID)
	if err != nil {
		return uuid.Nil, "", salon_errors.ErrUnauthorized
	}
	role := conversation.Role(claims.Role)
	if !role.Valid() {
		return uuid.Nil, "", salon_errors.ErrUnauthorized
	}
	return id, role, nil
}

// SignAccessToken mints a token for the given identity. Used by the local
// development seed tooling and tests; production tokens come from the
// account service with the same secret.
func (s *AuthService) SignAccessToken(participantID uuid.UUID, role conversation.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		ParticipantID: participantID.String(),
		Role:          string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

type identityCtxKey string

const participantCtxKey identityCtxKey = "participant"

type participantIdentity struct {
	ID   uuid.UUID
	Role conversation.Role
}

// WithIdentity stores the authenticated caller on the request context.
func WithIdentity(ctx context.Context, id uuid.UUID, role conversation.Role) context.Context {
	return context.WithValue(ctx, participantCtxKey, participantIdentity{ID: id, Role: role})
}

// IdentityFrom retrieves the authenticated caller from the context.
func IdentityFrom(ctx context.Context) (uuid.UUID, conversation.Role, error) {
	v, ok := ctx.Value(participantCtxKey).(participantIdentity)
	if !ok {
		return uuid.Nil, "", salon_errors.ErrUnauthorized
	}
	return v.ID, v.Role, nil
}
