package rpc

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	adminScope     = "host:admin"
	adminClockSkew = 2 * time.Minute
)

// adminAuth verifies HS256 bearer tokens carrying the host:admin scope.
type adminAuth struct {
	secret []byte
}

func newAdminAuth(secret string) *adminAuth {
	return &adminAuth{secret: []byte(strings.TrimSpace(secret))}
}

func (a *adminAuth) require(r *http.Request) *RPCError {
	if a == nil || len(a.secret) == 0 {
		return &RPCError{Code: codeUnauthorized, Message: "admin authentication not configured", status: http.StatusUnauthorized}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header", status: http.StatusUnauthorized}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme", status: http.StatusUnauthorized}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token", status: http.StatusUnauthorized}
	}
	claims, err := a.parse(token)
	if err != nil {
		return &RPCError{Code: codeUnauthorized, Message: "invalid token", Data: err.Error(), status: http.StatusUnauthorized}
	}
	if !hasScope(claims, adminScope) {
		return &RPCError{Code: codeUnauthorized, Message: "insufficient scope", status: http.StatusForbidden}
	}
	return nil
}

func (a *adminAuth) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithLeeway(adminClockSkew), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("claims not map")
	}
	return claims, nil
}

func hasScope(claims jwt.MapClaims, want string) bool {
	switch v := claims["scope"].(type) {
	case string:
		for _, scope := range strings.Fields(v) {
			if scope == want {
				return true
			}
		}
	case []interface{}:
		for _, entry := range v {
			if s, ok := entry.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

// IssueAdminToken signs a host:admin token valid for ttl.
func IssueAdminToken(secret, subject string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("admin secret required")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   subject,
		"scope": adminScope,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(strings.TrimSpace(secret)))
}
