package signature

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// maxVerifiedBody bounds how much of an inbound request is buffered for verification
const maxVerifiedBody = 1 << 20

// SecretFunc resolves the shared secret for an inbound request
type SecretFunc func(r *http.Request) (string, error)

/* Middleware verifies inbound signed requests before they reach next
 * Rejections are answered 401 and logged; they are never retried
 * The body is buffered and restored so next can read it again
 */
func Middleware(secretFor SecretFunc, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret, err := secretFor(r)
			if err != nil || secret == "" {
				logger.Warn().Err(err).Str("path", r.URL.Path).Msg("signature secret not resolved")
				http.Error(w, "invalid signature", http.StatusUnauthorized)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxVerifiedBody))
			if err != nil {
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}
			r.Body.Close()

			if err := Check(body, r.Header.Get(Header), secret, time.Now(), Tolerance); err != nil {
				logger.Warn().Err(err).Str("path", r.URL.Path).Msg("signature rejected")
				http.Error(w, "invalid signature", http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
