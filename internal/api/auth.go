package api

import (
	"net/http"
	"strings"

	"garagebook/internal/auth"

	"github.com/rs/zerolog"
)

// Gate admits requests carrying a valid bearer token. A missing or malformed
// header is 401, a token that fails verification is 403.
type Gate struct {
	tokens TokenVerifier
	logger *zerolog.Logger
}

func NewGate(tokens TokenVerifier, logger *zerolog.Logger) *Gate {
	return &Gate{tokens: tokens, logger: logger}
}

func (g *Gate) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			writeMessage(w, http.StatusUnauthorized, "Access denied. No token provided.")
			return
		}

		raw, ok := bearerToken(header)
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Access denied. Malformed authorization header.")
			return
		}

		claims, err := g.tokens.Verify(raw)
		if err != nil {
			g.logger.Debug().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("Token rejected")
			writeMessage(w, http.StatusForbidden, "Invalid or expired token")
			return
		}

		next(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
