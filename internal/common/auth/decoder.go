package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"application-intake/internal/common/errors"
	"application-intake/internal/common/logger"
	"application-intake/internal/models"

	"github.com/tidwall/gjson"
)

// TokenDecoder turns an opaque resume or bearer token into a user identity.
type TokenDecoder interface {
	Decode(ctx context.Context, token string) (models.Identity, error)
}

// ClaimsDecoder reads the identity from the token itself without verifying
// a signature. The token is either a base64url encoded JSON claim set or a
// JWT, whose payload segment is read. The user id is taken from "userId" or
// "sub", the email from "email".
type ClaimsDecoder struct{}

func NewClaimsDecoder() *ClaimsDecoder { return &ClaimsDecoder{} }

func (ClaimsDecoder) Decode(_ context.Context, token string) (models.Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return models.Identity{}, errors.NewTokenInvalidError("empty token")
	}

	segment := token
	if parts := strings.Split(token, "."); len(parts) == 3 {
		segment = parts[1]
	}

	payload, err := decodeSegment(segment)
	if err != nil {
		return models.Identity{}, errors.NewTokenInvalidError("token is not base64url encoded")
	}
	if !gjson.ValidBytes(payload) || !gjson.ParseBytes(payload).IsObject() {
		return models.Identity{}, errors.NewTokenInvalidError("token payload is not a JSON object")
	}

	claims := gjson.GetManyBytes(payload, "userId", "sub", "email")
	userID := claims[0].String()
	if userID == "" {
		userID = claims[1].String()
	}
	if userID == "" {
		return models.Identity{}, errors.NewTokenInvalidError("token carries no user id")
	}
	return models.Identity{UserID: userID, Email: claims[2].String()}, nil
}

func decodeSegment(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// EncodeClaims produces a token ClaimsDecoder accepts.
func EncodeClaims(id models.Identity) string {
	payload, _ := json.Marshal(id)
	return base64.RawURLEncoding.EncodeToString(payload)
}

// IntrospectionDecoder validates tokens against Keycloak. When the
// introspection response has no email the user record is consulted; a
// failed lookup leaves the email empty.
type IntrospectionDecoder struct {
	client *KeycloakClient
	logger logger.Logger
}

func NewIntrospectionDecoder(client *KeycloakClient, log logger.Logger) *IntrospectionDecoder {
	return &IntrospectionDecoder{client: client, logger: logger.Component(log, "token-introspection")}
}

func (d *IntrospectionDecoder) Decode(ctx context.Context, token string) (models.Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return models.Identity{}, errors.NewTokenInvalidError("empty token")
	}

	info, err := d.client.ValidateToken(ctx, token)
	if err != nil {
		return models.Identity{}, err
	}
	if info.Sub == "" {
		return models.Identity{}, errors.NewTokenInvalidError("token carries no subject")
	}

	id := models.Identity{UserID: info.Sub, Email: info.Email}
	if id.Email == "" {
		user, err := d.client.GetUser(ctx, info.Sub)
		if err != nil {
			d.logger.Warn("Email lookup failed", map[string]interface{}{
				"userId": info.Sub,
				"error":  err,
			})
		} else {
			id.Email = user.Email
		}
	}
	return id, nil
}
