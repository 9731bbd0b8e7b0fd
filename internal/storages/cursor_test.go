package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageCursor_RoundTrip(t *testing.T) {
	cursor := MessageCursor{
		SentAt:    time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC),
		MessageID: "67f85047-09d0-42a2-a5ee-9ce8db28cb07",
	}

	encoded := cursor.Encode()
	assert.NotContains(t, encoded, "=", "token should be URL-safe without padding")

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.True(t, cursor.SentAt.Equal(decoded.SentAt))
	assert.Equal(t, cursor.MessageID, decoded.MessageID)
}

func TestDecodeCursor_EmptyMeansFirstPage(t *testing.T) {
	decoded, err := DecodeCursor("")
	assert.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestDecodeCursor_CorrectErrorIfMalformed(t *testing.T) {
	for _, token := range []string{"not base64!!", "bm90IGpzb24"} {
		_, err := DecodeCursor(token)
		assert.ErrorIs(t, err, ErrBadCursor, "token %q", token)
	}
}
