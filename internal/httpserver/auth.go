package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/caribevillas/billing/pkg/billing"
)

const identityContextKey = "billing_identity"

var errMissingBearer = errors.New("missing bearer token")

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// bearerAuth validates the Authorization header and stores the caller
// identity on the request context. Tokens carry the user id in `sub`
// and the role in `role`.
func bearerAuth(signingKey []byte, issuer string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		identity, err := identityFromHeader(ctx.GetHeader("Authorization"), signingKey, issuer)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing or invalid token"))
			return
		}
		ctx.Set(identityContextKey, identity)
		ctx.Next()
	}
}

func identityFromHeader(header string, signingKey []byte, issuer string) (billing.Identity, error) {
	rawToken, found := strings.CutPrefix(header, "Bearer ")
	if !found || rawToken == "" {
		return billing.Identity{}, errMissingBearer
	}
	parserOptions := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(issuer))
	}
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		return signingKey, nil
	}, parserOptions...)
	if err != nil {
		return billing.Identity{}, err
	}
	return billing.NewIdentity(claims.Subject, claims.Role)
}

func getIdentity(ctx *gin.Context) (billing.Identity, bool) {
	value, ok := ctx.Get(identityContextKey)
	if !ok {
		return billing.Identity{}, false
	}
	identity, ok := value.(billing.Identity)
	return identity, ok
}
