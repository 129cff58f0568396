// Package ingest reads and validates the /ask request body.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

// EnvelopeOverhead is the slack allowed on top of the message length for the
// JSON wrapper around it.
const EnvelopeOverhead = 1000

var (
	// ErrBodyTooLarge is returned as soon as the body passes the ceiling.
	ErrBodyTooLarge = errors.New("request body too large")
	// ErrMalformedJSON is returned when the body is not a JSON document.
	ErrMalformedJSON = errors.New("malformed JSON body")
	// ErrMissingMessage is returned when "message" is absent or not a string.
	ErrMissingMessage = errors.New(`missing or invalid "message" field`)
	// ErrEmptyMessage is returned for a blank message.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrMessageTooLong is returned when the message exceeds the limit.
	ErrMessageTooLong = errors.New("message too long")
)

// BodyLimit returns the byte ceiling for a given message limit.
func BodyLimit(maxMessageLength int) int64 {
	return int64(maxMessageLength) + EnvelopeOverhead
}

// ReadMessage reads at most BodyLimit(maxMessageLength) bytes from the
// request, parses them as a JSON object and returns its "message" field.
// The returned message is not trimmed.
func ReadMessage(w http.ResponseWriter, r *http.Request, maxMessageLength int) (string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, BodyLimit(maxMessageLength)))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", ErrBodyTooLarge
		}
		// A truncated body cannot be a complete JSON document.
		return "", fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return ParseMessage(body, maxMessageLength)
}

// ParseMessage validates an already buffered body.
func ParseMessage(body []byte, maxMessageLength int) (string, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	fields, ok := doc.(map[string]any)
	if !ok {
		return "", ErrMissingMessage
	}
	message, ok := fields["message"].(string)
	if !ok {
		return "", ErrMissingMessage
	}
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(message) > maxMessageLength {
		return "", ErrMessageTooLong
	}
	return message, nil
}
