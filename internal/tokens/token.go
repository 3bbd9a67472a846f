package tokens

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Lifetime is how long an issued token is advertised as valid.
const Lifetime = 5 * time.Minute

// timestampLayout is ISO-8601 in UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

var ErrInvalid = errors.New("invalid token")

// Payload is what students scan. Its shape is shared with external verifiers.
type Payload struct {
	SessionID  string `json:"sessionId"`
	CourseCode string `json:"courseCode"`
	Timestamp  string `json:"timestamp"`
	Location   string `json:"location"`
}

type Token struct {
	Payload Payload `json:"payload"`
	// Value is the encoded payload, rendered as a QR code by clients.
	Value    string    `json:"value"`
	IssuedAt time.Time `json:"issuedAt"`
	Expires  time.Time `json:"expiresAt"`
}

func Issue(sessionID, courseCode, location string, issuedAt time.Time) (*Token, error) {
	payload := Payload{
		SessionID:  sessionID,
		CourseCode: courseCode,
		Timestamp:  issuedAt.UTC().Format(timestampLayout),
		Location:   location,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Token{
		Payload:  payload,
		Value:    string(data),
		IssuedAt: issuedAt,
		Expires:  issuedAt.Add(Lifetime),
	}, nil
}

func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.Expires)
}

// Parse decodes a scanned token value.
func Parse(value string) (*Payload, error) {
	var payload Payload
	if err := json.Unmarshal([]byte(value), &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if payload.SessionID == "" || payload.CourseCode == "" {
		return nil, fmt.Errorf("%w: missing session", ErrInvalid)
	}
	return &payload, nil
}

// IssuedAt returns the time the payload was issued.
func (p Payload) IssuedAt() (time.Time, error) {
	t, err := time.Parse(timestampLayout, p.Timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp: %w", ErrInvalid, err)
	}
	return t, nil
}
