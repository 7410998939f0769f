package room

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity is the authenticated user attached to a connection. CreatedBy ==
// UserId is the sole creator-election rule for a room's lifetime.
type Identity struct {
	UserId      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	IsAnonymous bool   `json:"is_anonymous"`
}

type CreateIdentityParams struct {
	DisplayName string
}

type CreateIdentityResponse struct {
	Identity Identity
	Token    string
}

// CreateIdentity provisions a guest identity. A missing display name gets a
// generated guest name, matching anonymous sign-in.
func (s *service) CreateIdentity(params *CreateIdentityParams) (CreateIdentityResponse, error) {
	displayName := params.DisplayName
	if displayName == "" {
		displayName = "Guest " + s.generator.GenerateRandomString(4)
	}

	identity := Identity{
		UserId:      uuid.NewString(),
		DisplayName: displayName,
		IsAnonymous: true,
	}

	token, err := s.generateToken(identity)
	if err != nil {
		return CreateIdentityResponse{}, fmt.Errorf("failed to generate token: %w", err)
	}

	return CreateIdentityResponse{Identity: identity, Token: token}, nil
}

func (s *service) generateToken(identity Identity) (string, error) {
	claims := jwt.MapClaims{
		"user_id":      identity.UserId,
		"display_name": identity.DisplayName,
		"is_anonymous": identity.IsAnonymous,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(s.secret))
}

// ParseIdentity validates a token and returns the identity it carries.
func (s *service) ParseIdentity(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(s.secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, err
	}

	if !token.Valid {
		return Identity{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid token claims")
	}

	userId, _ := claims["user_id"].(string)
	if userId == "" {
		return Identity{}, errors.New("invalid token claims")
	}
	displayName, _ := claims["display_name"].(string)
	isAnonymous, _ := claims["is_anonymous"].(bool)

	return Identity{
		UserId:      userId,
		DisplayName: displayName,
		IsAnonymous: isAnonymous,
	}, nil
}
