package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/webhook/payload"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret(t *testing.T) {
	t.Run("success - minimum size", func(t *testing.T) {
		secret, err := GenerateSecret(MinSecretBytes)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(secret.String(), SecretPrefix))
		assert.Equal(t, MinSecretBytes, len(secret.Bytes()))
	})

	t.Run("success - maximum size", func(t *testing.T) {
		secret, err := GenerateSecret(MaxSecretBytes)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(secret.String(), SecretPrefix))
		assert.Equal(t, MaxSecretBytes, len(secret.Bytes()))
	})

	t.Run("success - medium size", func(t *testing.T) {
		secret, err := GenerateSecret(32)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(secret.String(), SecretPrefix))
		assert.Equal(t, 32, len(secret.Bytes()))
	})

	t.Run("error - too small", func(t *testing.T) {
		_, err := GenerateSecret(MinSecretBytes - 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret size must be between")
	})

	t.Run("error - too large", func(t *testing.T) {
		_, err := GenerateSecret(MaxSecretBytes + 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret size must be between")
	})

	t.Run("randomness - generates different secrets", func(t *testing.T) {
		secret1, err1 := GenerateSecret(32)
		secret2, err2 := GenerateSecret(32)
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.NotEqual(t, secret1.String(), secret2.String())
	})
}

func TestParseSecret(t *testing.T) {
	t.Run("success - valid secret", func(t *testing.T) {
		// Generate a secret first
		original, err := GenerateSecret(32)
		require.NoError(t, err)

		// Parse it back
		parsed, err := ParseSecret(original.String())
		require.NoError(t, err)
		assert.Equal(t, original.String(), parsed.String())
		assert.Equal(t, original.Bytes(), parsed.Bytes())
	})

	t.Run("error - missing prefix", func(t *testing.T) {
		_, err := ParseSecret("dGVzdHNlY3JldA==")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must start with")
	})

	t.Run("error - invalid base64", func(t *testing.T) {
		_, err := ParseSecret(SecretPrefix + "not-valid-base64!!!")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decoding base64")
	})

	t.Run("error - secret too small", func(t *testing.T) {
		// Generate a base64 string that's too small
		smallSecret := SecretPrefix + "dGVzdA==" // "test" in base64 (4 bytes)
		_, err := ParseSecret(smallSecret)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret size must be between")
	})
}

func TestSign(t *testing.T) {
	secret, err := GenerateSecret(DefaultSecretBytes)
	require.NoError(t, err)

	body := []byte(`{"data":{"foo":"bar"},"event":"webhook.test","timestamp":"2024-01-01T12:00:00Z"}`)

	before := time.Now().Unix()
	sig, err := Sign(body, secret.String())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, sig.Timestamp, before)
	assert.LessOrEqual(t, sig.Timestamp, time.Now().Unix())
	assert.True(t, Verify(body, sig.String(), secret.String()))
}

func TestSignAt(t *testing.T) {
	secret := "whsec_dGVzdC1zZWNyZXQtdGhhdC1pcy1sb25nLWVub3VnaA=="
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	body := []byte(`{"event":"order.created","timestamp":"2024-01-01T12:00:00Z","data":{"order_id":"ord_1"}}`)

	t.Run("success - header format", func(t *testing.T) {
		sig, err := SignAt(body, secret, at)
		require.NoError(t, err)
		assert.Equal(t, at.Unix(), sig.Timestamp)
		assert.Len(t, sig.Digest, 64)
		assert.Regexp(t, `^t=1704110400,v1=[0-9a-f]{64}$`, sig.String())
	})

	t.Run("success - digest covers timestamp and canonical JSON", func(t *testing.T) {
		sig, err := SignAt(body, secret, at)
		require.NoError(t, err)

		canonical, err := payload.Canonicalize(body)
		require.NoError(t, err)
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(fmt.Sprintf("%d.%s", at.Unix(), canonical)))
		assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), sig.Digest)
	})

	t.Run("success - whitespace and key order do not change the digest", func(t *testing.T) {
		reordered := []byte(`{ "data": {"order_id": "ord_1"}, "timestamp": "2024-01-01T12:00:00Z", "event": "order.created" }`)
		sig1, err := SignAt(body, secret, at)
		require.NoError(t, err)
		sig2, err := SignAt(reordered, secret, at)
		require.NoError(t, err)
		assert.Equal(t, sig1, sig2)
	})

	t.Run("success - different timestamps produce different digests", func(t *testing.T) {
		sig1, err := SignAt(body, secret, at)
		require.NoError(t, err)
		sig2, err := SignAt(body, secret, at.Add(time.Second))
		require.NoError(t, err)
		assert.NotEqual(t, sig1.Digest, sig2.Digest)
	})

	t.Run("error - empty secret", func(t *testing.T) {
		_, err := SignAt(body, "", at)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret is required")
	})

	t.Run("error - payload is not JSON", func(t *testing.T) {
		_, err := SignAt([]byte("not json"), secret, at)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "canonicalizing payload")
	})
}

func TestParseHeader(t *testing.T) {
	t.Run("success - canonical order", func(t *testing.T) {
		sig, err := ParseHeader("t=1704110400,v1=abcdef")
		require.NoError(t, err)
		assert.Equal(t, int64(1704110400), sig.Timestamp)
		assert.Equal(t, "abcdef", sig.Digest)
	})

	t.Run("success - any order with spaces and unknown schemes", func(t *testing.T) {
		sig, err := ParseHeader("v0=zzz, v1=abcdef , t=42")
		require.NoError(t, err)
		assert.Equal(t, int64(42), sig.Timestamp)
		assert.Equal(t, "abcdef", sig.Digest)
	})

	t.Run("error - empty header", func(t *testing.T) {
		_, err := ParseHeader("")
		require.ErrorIs(t, err, ErrMalformedHeader)
	})

	t.Run("error - missing digest", func(t *testing.T) {
		_, err := ParseHeader("t=42")
		require.ErrorIs(t, err, ErrMalformedHeader)
	})

	t.Run("error - timestamp not numeric", func(t *testing.T) {
		_, err := ParseHeader("t=yesterday,v1=abcdef")
		require.ErrorIs(t, err, ErrMalformedHeader)
	})
}

func TestVerifyAt(t *testing.T) {
	secret, err := GenerateSecret(DefaultSecretBytes)
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	body := []byte(`{"data":{"amount":1200,"currency":"INR"},"event":"payment.captured","timestamp":"2024-01-01T12:00:00Z"}`)

	sig, err := SignAt(body, secret.String(), now)
	require.NoError(t, err)
	header := sig.String()

	t.Run("success - fresh signature", func(t *testing.T) {
		assert.True(t, VerifyAt(body, header, secret.String(), now))
		assert.True(t, VerifyAt(body, header, secret.String(), now.Add(Tolerance)))
	})

	t.Run("failure - older than the replay window", func(t *testing.T) {
		assert.False(t, VerifyAt(body, header, secret.String(), now.Add(Tolerance+time.Second)))
		err := Check(body, header, secret.String(), now.Add(10*time.Minute), Tolerance)
		assert.ErrorIs(t, err, ErrTimestampOutOfRange)
	})

	t.Run("failure - timestamp from the future", func(t *testing.T) {
		assert.False(t, VerifyAt(body, header, secret.String(), now.Add(-Tolerance-time.Second)))
	})

	t.Run("failure - wrong secret", func(t *testing.T) {
		other, err := GenerateSecret(DefaultSecretBytes)
		require.NoError(t, err)
		err = Check(body, header, other.String(), now, Tolerance)
		assert.ErrorIs(t, err, ErrSignatureMismatch)
	})

	t.Run("failure - digest not hex", func(t *testing.T) {
		err := Check(body, fmt.Sprintf("t=%d,v1=nothex!", now.Unix()), secret.String(), now, Tolerance)
		assert.ErrorIs(t, err, ErrMalformedHeader)
	})

	t.Run("failure - every single bit flip of the payload", func(t *testing.T) {
		for i := range body {
			for bit := 0; bit < 8; bit++ {
				mutated := bytes.Clone(body)
				mutated[i] ^= 1 << bit
				if VerifyAt(mutated, header, secret.String(), now) {
					t.Fatalf("mutation at byte %d bit %d verified", i, bit)
				}
			}
		}
	})
}

func TestCheck_ExactBytes(t *testing.T) {
	secret := "whsec_dGVzdC1zZWNyZXQtdGhhdC1pcy1sb25nLWVub3VnaA=="
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	wire, err := payload.Canonicalize([]byte(`{"event":"order.created","timestamp":"2024-01-01T12:00:00Z","data":{"note":"a\u001bb"}}`))
	require.NoError(t, err)
	require.Contains(t, string(wire), `\u001b`)

	sig, err := SignAt(wire, secret, now)
	require.NoError(t, err)
	header := sig.String()
	require.True(t, VerifyAt(wire, header, secret, now))

	t.Run("failure - case flip inside a unicode escape", func(t *testing.T) {
		mutated := bytes.Replace(wire, []byte(`\u001b`), []byte(`\u001B`), 1)
		require.NotEqual(t, wire, mutated)
		assert.ErrorIs(t, Check(mutated, header, secret, now, Tolerance), ErrSignatureMismatch)
	})

	t.Run("failure - every single bit flip of an escaped payload", func(t *testing.T) {
		for i := range wire {
			for bit := 0; bit < 8; bit++ {
				mutated := bytes.Clone(wire)
				mutated[i] ^= 1 << bit
				if VerifyAt(mutated, header, secret, now) {
					t.Fatalf("mutation at byte %d bit %d verified", i, bit)
				}
			}
		}
	})

	t.Run("failure - same document re-encoded", func(t *testing.T) {
		spaced := []byte(`{ "data": {"note": "a\u001bb"}, "event": "order.created", "timestamp": "2024-01-01T12:00:00Z" }`)
		assert.ErrorIs(t, Check(spaced, header, secret, now, Tolerance), ErrSignatureMismatch)
	})
}

func TestRoundTrip(t *testing.T) {
	payloads := []string{
		`{}`,
		`[]`,
		`{"order_id":"ord_1","items":[{"sku":"A-1","qty":2}],"total":1999.5}`,
		`{"note":"unicode ✓ and <html> & quotes \"ok\""}`,
		`"just a string"`,
		`12345678901234567890`,
	}

	for _, p := range payloads {
		secret, err := GenerateSecret(DefaultSecretBytes)
		require.NoError(t, err)

		sig, err := Sign([]byte(p), secret.String())
		require.NoError(t, err)

		wire, err := payload.Canonicalize([]byte(p))
		require.NoError(t, err)
		assert.True(t, Verify(wire, sig.String(), secret.String()), "payload %s", p)
	}
}

func TestMiddleware(t *testing.T) {
	secret := "whsec_c2hhcmVkLXNlY3JldC1mb3ItbWlkZGxld2FyZS10ZXN0cw=="
	body := []byte(`{"data":{},"event":"webhook.test","timestamp":"2024-01-01T12:00:00Z"}`)

	var reached []byte
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	})
	h := Middleware(func(*http.Request) (string, error) { return secret, nil }, zerolog.Nop())(next)

	t.Run("success - valid request reaches handler with body intact", func(t *testing.T) {
		sig, err := Sign(body, secret)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/hooks", bytes.NewReader(body))
		req.Header.Set(Header, sig.String())
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, body, reached)
	})

	t.Run("failure - stale signature", func(t *testing.T) {
		sig, err := SignAt(body, secret, time.Now().Add(-time.Hour))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/hooks", bytes.NewReader(body))
		req.Header.Set(Header, sig.String())
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("failure - missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/hooks", bytes.NewReader(body))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
