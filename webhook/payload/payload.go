package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"
)

// eventNamePattern validates event names: hierarchical, full-stop delimited, [a-z0-9_.]
var eventNamePattern = regexp.MustCompile(`^[a-z0-9_]+(\.[a-z0-9_]+)+$`)

// Body is the JSON document POSTed to subscribers
type Body struct {
	// Event is the catalog name of the event, e.g. "order.created"
	Event string `json:"event"`

	// Timestamp is when the event occurred, ISO 8601 in UTC
	Timestamp time.Time `json:"timestamp"`

	// Data is the event payload snapshot
	Data json.RawMessage `json:"data"`
}

// Validate checks the body structure
func (b Body) Validate() error {
	if b.Event == "" {
		return fmt.Errorf("event is required")
	}

	if !eventNamePattern.MatchString(b.Event) {
		return fmt.Errorf("event must be hierarchical and contain only [a-z0-9_.]: %s", b.Event)
	}

	if b.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}

	if len(b.Data) == 0 {
		return fmt.Errorf("data is required")
	}

	if !json.Valid(b.Data) {
		return fmt.Errorf("data must be valid JSON")
	}

	return nil
}

// MarshalJSON renders the timestamp as RFC 3339 in UTC
func (b Body) MarshalJSON() ([]byte, error) {
	type Alias Body
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Timestamp: b.Timestamp.UTC().Format(time.RFC3339Nano),
		Alias:     (*Alias)(&b),
	})
}

// UnmarshalJSON parses the JSON-encoded body
func (b *Body) UnmarshalJSON(data []byte) error {
	type Alias Body
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(b),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("unmarshaling body: %w", err)
	}

	if aux.Timestamp == "" {
		b.Timestamp = time.Time{}
		return nil
	}

	timestamp, err := time.Parse(time.RFC3339Nano, aux.Timestamp)
	if err != nil {
		return fmt.Errorf("parsing timestamp: %w", err)
	}
	b.Timestamp = timestamp

	return nil
}

// New creates a Body from an event name, its occurrence time and a JSON snapshot
func New(event string, occurredAt time.Time, data json.RawMessage) (Body, error) {
	b := Body{
		Event:     event,
		Timestamp: occurredAt.UTC(),
		Data:      data,
	}

	if err := b.Validate(); err != nil {
		return Body{}, fmt.Errorf("validating body: %w", err)
	}

	return b, nil
}

// Parse parses and validates a JSON body
func Parse(data []byte) (Body, error) {
	var b Body
	if err := json.Unmarshal(data, &b); err != nil {
		return Body{}, fmt.Errorf("unmarshaling body: %w", err)
	}

	if err := b.Validate(); err != nil {
		return Body{}, fmt.Errorf("validating body: %w", err)
	}

	return b, nil
}

// Bytes returns the canonical JSON encoding of the body.
// These are exactly the bytes that get signed and sent.
func (b Body) Bytes() ([]byte, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshaling body: %w", err)
	}
	return Canonicalize(raw)
}

/* Canonicalize re-encodes a JSON document in a fixed form:
 * no insignificant whitespace, object keys sorted, numbers kept verbatim,
 * HTML characters left unescaped
 */
func Canonicalize(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding JSON: trailing data after document")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding JSON: %w", err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
