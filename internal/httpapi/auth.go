package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/identity"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const actorContextKey = "ticketd_actor"

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type authenticator struct {
	signingKey []byte
	issuer     string
	cookieName string
}

func newAuthenticator(signingKey string, issuer string, cookieName string) (*authenticator, error) {
	if signingKey == "" {
		return nil, errors.New("httpapi: session signing key is required")
	}
	return &authenticator{signingKey: []byte(signingKey), issuer: issuer, cookieName: cookieName}, nil
}

// SignSessionToken issues an HS256 session token carrying the user id in sub and the role claim.
func SignSessionToken(signingKey string, issuer string, userID string, role identity.Role, ttl time.Duration) (string, error) {
	actor, err := identity.NewActor(userID, role)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	claims := sessionClaims{
		Role: actor.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
}

func (auth *authenticator) middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		actor, err := auth.authenticate(ctx)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(kindUnauthorized, "missing or invalid session"))
			return
		}
		ctx.Set(actorContextKey, actor)
		ctx.Next()
	}
}

func (auth *authenticator) authenticate(ctx *gin.Context) (identity.Actor, error) {
	rawToken := bearerToken(ctx.GetHeader("Authorization"))
	if rawToken == "" && auth.cookieName != "" {
		if cookie, err := ctx.Cookie(auth.cookieName); err == nil {
			rawToken = strings.TrimSpace(cookie)
		}
	}
	if rawToken == "" {
		return identity.Actor{}, identity.ErrUnauthorized
	}
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if auth.issuer != "" {
		options = append(options, jwt.WithIssuer(auth.issuer))
	}
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(*jwt.Token) (any, error) {
		return auth.signingKey, nil
	}, options...)
	if err != nil || !token.Valid {
		return identity.Actor{}, fmt.Errorf("%w: %v", identity.ErrUnauthorized, err)
	}
	role, err := identity.ParseRole(claims.Role)
	if err != nil {
		return identity.Actor{}, fmt.Errorf("%w: %v", identity.ErrUnauthorized, err)
	}
	return identity.NewActor(claims.Subject, role)
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func actorFrom(ctx *gin.Context) identity.Actor {
	value, ok := ctx.Get(actorContextKey)
	if !ok {
		return identity.Actor{}
	}
	actor, _ := value.(identity.Actor)
	return actor
}
