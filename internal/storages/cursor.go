package storage

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

var ErrBadCursor = errors.New("malformed pagination cursor")

// MessageCursor is the keyset position of the last message a caller has
// seen. It round-trips through an opaque base64 token so clients can't
// depend on its layout.
type MessageCursor struct {
	SentAt    time.Time `json:"t"`
	MessageID string    `json:"id"`
}

func (c *MessageCursor) Encode() string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func DecodeCursor(token string) (*MessageCursor, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrBadCursor
	}

	cursor := MessageCursor{}
	if err = json.Unmarshal(raw, &cursor); err != nil {
		return nil, ErrBadCursor
	}
	if cursor.MessageID == "" || cursor.SentAt.IsZero() {
		return nil, ErrBadCursor
	}
	return &cursor, nil
}
