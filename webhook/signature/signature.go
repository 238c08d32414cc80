package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/webhook/payload"
)

const (
	// SecretPrefix is the prefix of every subscription signing secret
	SecretPrefix = "whsec_"

	// SignatureVersion is the scheme identifier of the HMAC-SHA256 digest
	SignatureVersion = "v1"

	// MinSecretBytes is the minimum recommended secret size (192 bits)
	MinSecretBytes = 24

	// MaxSecretBytes is the maximum recommended secret size (512 bits)
	MaxSecretBytes = 64

	// DefaultSecretBytes is the size used for new subscriptions
	DefaultSecretBytes = 32

	// Tolerance is the replay window: signatures older or newer than this are rejected
	Tolerance = 300 * time.Second

	// Header carries the signature on every delivery
	Header = "X-Webhook-Signature"
)

var (
	ErrMalformedHeader     = errors.New("malformed signature header")
	ErrTimestampOutOfRange = errors.New("signature timestamp outside tolerance")
	ErrSignatureMismatch   = errors.New("signature mismatch")
)

// Secret represents a signing secret
type Secret struct {
	raw     []byte
	encoded string
}

// GenerateSecret creates a new cryptographically secure signing secret
// between MinSecretBytes and MaxSecretBytes in size.
func GenerateSecret(size int) (Secret, error) {
	if size < MinSecretBytes || size > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}

	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return Secret{}, fmt.Errorf("generating random bytes: %w", err)
	}

	return Secret{
		raw:     b,
		encoded: SecretPrefix + base64.StdEncoding.EncodeToString(b),
	}, nil
}

// ParseSecret parses a base64-encoded secret with the whsec_ prefix
func ParseSecret(encoded string) (Secret, error) {
	if !strings.HasPrefix(encoded, SecretPrefix) {
		return Secret{}, fmt.Errorf("secret must start with %s prefix", SecretPrefix)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(encoded, SecretPrefix))
	if err != nil {
		return Secret{}, fmt.Errorf("decoding base64 secret: %w", err)
	}

	if len(raw) < MinSecretBytes || len(raw) > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}

	return Secret{
		raw:     raw,
		encoded: encoded,
	}, nil
}

// String returns the prefixed secret as handed to subscribers
func (s Secret) String() string {
	return s.encoded
}

// Bytes returns the decoded random bytes
func (s Secret) Bytes() []byte {
	return s.raw
}

/* Signature is the parsed form of the signature header
 * Wire format: t=<unix seconds>,v1=<hex HMAC-SHA256>
 * The HMAC key is the full secret string exactly as shown to the subscriber
 */
type Signature struct {
	Timestamp int64
	Digest    string
}

// String renders the header value
func (s Signature) String() string {
	return fmt.Sprintf("t=%d,%s=%s", s.Timestamp, SignatureVersion, s.Digest)
}

// Time returns the signed timestamp
func (s Signature) Time() time.Time {
	return time.Unix(s.Timestamp, 0).UTC()
}

// Sign signs payload with the current time
func Sign(body []byte, secret string) (Signature, error) {
	return SignAt(body, secret, time.Now())
}

// SignAt canonicalizes payload and signs "{timestamp}.{json}" with HMAC-SHA256
func SignAt(body []byte, secret string, at time.Time) (Signature, error) {
	if secret == "" {
		return Signature{}, fmt.Errorf("secret is required")
	}

	canonical, err := payload.Canonicalize(body)
	if err != nil {
		return Signature{}, fmt.Errorf("canonicalizing payload: %w", err)
	}

	ts := at.Unix()
	return Signature{
		Timestamp: ts,
		Digest:    hex.EncodeToString(digest(secret, ts, canonical)),
	}, nil
}

func digest(secret string, ts int64, canonical []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(canonical)
	return mac.Sum(nil)
}

// ParseHeader parses "t=...,v1=..." in any order, ignoring unknown schemes
func ParseHeader(header string) (Signature, error) {
	var (
		sig    Signature
		seenTS bool
	)

	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return Signature{}, fmt.Errorf("%w: element %q", ErrMalformedHeader, part)
		}

		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return Signature{}, fmt.Errorf("%w: timestamp %q", ErrMalformedHeader, value)
			}
			sig.Timestamp = ts
			seenTS = true
		case SignatureVersion:
			sig.Digest = value
		}
	}

	if !seenTS || sig.Digest == "" {
		return Signature{}, fmt.Errorf("%w: t and %s are required", ErrMalformedHeader, SignatureVersion)
	}

	return sig, nil
}

// Verify reports whether header is a valid, fresh signature of payload
func Verify(body []byte, header, secret string) bool {
	return VerifyAt(body, header, secret, time.Now())
}

// VerifyAt is Verify with an explicit clock
func VerifyAt(body []byte, header, secret string, now time.Time) bool {
	return Check(body, header, secret, now, Tolerance) == nil
}

// Check verifies header against the received body and explains why a signature was rejected
func Check(body []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	sig, err := ParseHeader(header)
	if err != nil {
		return err
	}

	age := now.Sub(sig.Time())
	if age < 0 {
		age = -age
	}
	if age > tolerance {
		return fmt.Errorf("%w: %s", ErrTimestampOutOfRange, age.Truncate(time.Second))
	}

	provided, err := hex.DecodeString(sig.Digest)
	if err != nil {
		return fmt.Errorf("%w: digest is not hex", ErrMalformedHeader)
	}

	// the digest covers the bytes exactly as received; senders transmit the canonical bytes they signed
	if !hmac.Equal(provided, digest(secret, sig.Timestamp, body)) {
		return ErrSignatureMismatch
	}

	return nil
}
