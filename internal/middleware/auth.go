package middleware

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/catalog-sync/pkg/httpcontext"
)

// JWTAuth validates an HMAC-signed bearer token and forwards its owner
// (claim "owner_id", falling back to "sub") in the X-Owner-ID header.
func JWTAuth(secret, algorithm string, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{algorithm}))

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			ctx.Request.Header.Del(httpcontext.OwnerHeader)

			tokenString := extractToken(ctx)
			if tokenString == "" {
				unauthorized(ctx, "missing bearer token")
				return
			}

			token, err := parser.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				logger.Warn("invalid jwt token", zap.Error(err))
				unauthorized(ctx, "invalid token")
				return
			}

			owner := ownerFromClaims(token.Claims)
			if owner == "" {
				unauthorized(ctx, "token carries no owner")
				return
			}
			ctx.Request.Header.Set(httpcontext.OwnerHeader, owner)

			next(ctx)
		}
	}
}

func ownerFromClaims(claims jwt.Claims) string {
	mapClaims, ok := claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	for _, name := range []string{"owner_id", "sub"} {
		if value, ok := mapClaims[name].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func unauthorized(ctx *fasthttp.RequestCtx, message string) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetBodyString(fmt.Sprintf(`{"status":"error","code":"UNAUTHORIZED","error":%q}`, message))
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}
