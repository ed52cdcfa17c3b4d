package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"fixitnow/internal/domain"
)

const actorKey = "fixitnow.actor"

// Claims are the identity claims carried by an access token.
type Claims struct {
	Role   domain.Role `json:"role"`
	Active *bool       `json:"active,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator validates HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	logger *slog.Logger
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(secret string, logger *slog.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), logger: logger}
}

// Middleware resolves the bearer token to an actor stored on the context.
// Missing, invalid or expired tokens get 401; inactive identities get 403.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			abort(c, http.StatusUnauthorized, "authorization token missing")
			return
		}

		actor, err := a.Parse(token)
		switch {
		case errors.Is(err, errInactive):
			a.logger.Warn("inactive identity rejected", "user_id", actor.ID)
			abort(c, http.StatusForbidden, "account is inactive")
			return
		case err != nil:
			a.logger.Debug("invalid token", "error", err)
			abort(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

var errInactive = errors.New("identity is inactive")

// Parse validates token and returns the actor it names.
func (a *Authenticator) Parse(token string) (domain.Actor, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Actor{}, err
	}
	if !parsed.Valid {
		return domain.Actor{}, errors.New("token is not valid")
	}

	if claims.Subject == "" {
		return domain.Actor{}, errors.New("token has no subject")
	}
	if !claims.Role.IsValid() {
		return domain.Actor{}, fmt.Errorf("unknown role %q", claims.Role)
	}

	actor := domain.Actor{ID: claims.Subject, Role: claims.Role}
	if claims.Active != nil && !*claims.Active {
		return actor, errInactive
	}
	return actor, nil
}

// Issue signs a token for actor. It backs the seed command and tests.
func (a *Authenticator) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// RequireRole lets only the listed roles through.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "authorization token missing")
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, fmt.Sprintf("role %q may not access this resource", actor.Role))
	}
}

// ActorFromContext returns the actor set by the auth middleware.
func ActorFromContext(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}
