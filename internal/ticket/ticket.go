// Package ticket generates ticket identifiers and team invite codes, and
// encodes/decodes the QR payload presented at check-in.
package ticket

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	ticketLen = 12
	inviteLen = 8
)

// NewTicketID returns a fresh ticket identifier. Global uniqueness is
// enforced by the registrations table; callers retry on conflict.
func NewTicketID() (string, error) {
	id, err := gonanoid.Generate(alphabet, ticketLen)
	if err != nil {
		return "", fmt.Errorf("generate ticket id: %w", err)
	}
	return "TKT-" + id, nil
}

// NewInviteCode returns a fresh team invite code. Uniqueness is enforced by
// the teams table; callers retry on conflict.
func NewInviteCode() (string, error) {
	code, err := gonanoid.Generate(alphabet, inviteLen)
	if err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	return code, nil
}

// qrClaims is the JSON document carried inside a QR payload.
type qrClaims struct {
	TicketID string `json:"tid"`
	EventID  string `json:"eid"`
}

// EncodeQR builds the opaque QR payload for a confirmed registration.
func EncodeQR(ticketID, eventID string) string {
	raw, _ := json.Marshal(qrClaims{TicketID: ticketID, EventID: eventID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeQR parses a scanned QR payload back into its ticket and event ids.
func DecodeQR(payload string) (ticketID, eventID string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", "", fmt.Errorf("decode qr payload: %w", err)
	}
	var c qrClaims
	if err := json.Unmarshal(raw, &c); err != nil {
		return "", "", fmt.Errorf("parse qr payload: %w", err)
	}
	if c.TicketID == "" || c.EventID == "" {
		return "", "", fmt.Errorf("qr payload missing ticket or event id")
	}
	return c.TicketID, c.EventID, nil
}
