package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type ctxKey string

const sessionIDKey ctxKey = "session_id"

const (
	// CookieName lleva el id de sesión del navegador (JWT firmado).
	CookieName = "vcs_session"

	cookieTTL = 30 * 24 * time.Hour
)

// SessionContext garantiza que todo request traiga un id de sesión:
//   - Con secret: cookie JWT HS256; ausente o inválida => sesión nueva y
//     cookie nueva en la respuesta.
//   - Sin secret (modo dev): header X-Debug-Session-ID o cookie cruda.
//
// Nunca corta el request; "sin sesión" aquí solo significa sesión nueva.
func SessionContext(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Dev mode: permitir inyectar la sesión sin firmar
			if len(secret) == 0 {
				sid := strings.TrimSpace(r.Header.Get("X-Debug-Session-ID"))
				if sid == "" {
					if c, err := r.Cookie(CookieName); err == nil {
						sid = strings.TrimSpace(c.Value)
					}
				}
				if sid == "" {
					sid = uuid.NewString()
					setCookie(w, sid)
				}
				next.ServeHTTP(w, r.WithContext(withSessionID(r.Context(), sid)))
				return
			}

			var sid string
			if c, err := r.Cookie(CookieName); err == nil {
				sid = parseToken(secret, c.Value)
			}
			if sid == "" {
				sid = uuid.NewString()
				if tok, err := mintToken(secret, sid); err == nil {
					setCookie(w, tok)
				}
			}
			next.ServeHTTP(w, r.WithContext(withSessionID(r.Context(), sid)))
		})
	}
}

func GetSessionID(ctx context.Context) (string, bool) {
	v := ctx.Value(sessionIDKey)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func withSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sid)
}

func setCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(cookieTTL.Seconds()),
	})
}

func mintToken(secret []byte, sid string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   sid,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(cookieTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(secret []byte, raw string) string {
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return ""
	}
	return strings.TrimSpace(claims.Subject)
}
