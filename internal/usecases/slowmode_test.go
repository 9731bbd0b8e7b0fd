package usecases

import (
	"testing"
	"time"

	"github.com/practice-sem-2/chat-service/internal/models"
	"github.com/stretchr/testify/assert"
)

func slowModeChat(interval int) *models.Chat {
	return &models.Chat{
		SlowModeEnabled:  true,
		SlowModeInterval: interval,
	}
}

func TestSlowModeAllows_DisabledAlwaysAllows(t *testing.T) {
	now := time.Now()
	last := now.Add(-time.Millisecond)

	chat := &models.Chat{SlowModeEnabled: false, SlowModeInterval: 10}
	assert.True(t, SlowModeAllows(chat, &last, now))

	chat = &models.Chat{SlowModeEnabled: true, SlowModeInterval: 0}
	assert.True(t, SlowModeAllows(chat, &last, now))
}

func TestSlowModeAllows_FirstMessageAllowed(t *testing.T) {
	assert.True(t, SlowModeAllows(slowModeChat(10), nil, time.Now()))
}

func TestSlowModeAllows_BoundaryIsInclusive(t *testing.T) {
	chat := slowModeChat(10)
	now := time.Date(2024, 6, 1, 12, 0, 10, 0, time.UTC)

	tooEarly := now.Add(-10*time.Second + time.Millisecond)
	assert.False(t, SlowModeAllows(chat, &tooEarly, now), "9.999s elapsed is still throttled")

	exact := now.Add(-10 * time.Second)
	assert.True(t, SlowModeAllows(chat, &exact, now), "exactly the interval allows the send")

	wellPast := now.Add(-11 * time.Second)
	assert.True(t, SlowModeAllows(chat, &wellPast, now))
}
