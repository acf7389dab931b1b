package mockserver

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type tokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func (i *tokenIssuer) issue(userID int, username string, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.Itoa(userID),
		"username": username,
		"typ":      typ,
		"jti":      uuid.NewString(),
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

func (i *tokenIssuer) issuePair(userID int, username string) (access string, refresh string, err error) {
	access, err = i.issue(userID, username, "access", i.accessTTL)
	if err != nil {
		return "", "", err
	}

	refresh, err = i.issue(userID, username, "refresh", i.refreshTTL)
	if err != nil {
		return "", "", err
	}

	return access, refresh, nil
}

// validate checks signature and expiry and returns the subject user id.
// Only access tokens authenticate requests.
func (i *tokenIssuer) validate(raw string) (int, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("invalid token: %w", err)
	}

	if typ, _ := claims["typ"].(string); typ != "access" {
		return 0, fmt.Errorf("token type %q cannot authenticate", typ)
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return 0, fmt.Errorf("invalid subject: %w", err)
	}

	userID, err := strconv.Atoi(sub)
	if err != nil {
		return 0, fmt.Errorf("invalid subject: %w", err)
	}

	return userID, nil
}
