package usecases

import (
	"time"

	"github.com/practice-sem-2/chat-service/internal/models"
)

// SlowModeAllows decides whether an author may send right now. lastSent is
// the author's most recent active message in this chat, nil if none. The
// boundary is inclusive: elapsed time exactly equal to the interval allows
// the send.
func SlowModeAllows(chat *models.Chat, lastSent *time.Time, now time.Time) bool {
	if !chat.SlowModeEnabled || chat.SlowModeInterval <= 0 {
		return true
	}
	if lastSent == nil {
		return true
	}
	return now.Sub(*lastSent) >= time.Duration(chat.SlowModeInterval)*time.Second
}
