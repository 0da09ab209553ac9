package gmailclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("dana@example.com", "Registration confirmed", "See you there")

	assert.Equal(t,
		"To: dana@example.com\r\nSubject: Registration confirmed\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\nSee you there",
		msg)
}

func TestNewLimiter(t *testing.T) {
	assert.Equal(t, rate.Limit(defaultEmailsPerMinute/60.0), newLimiter(0).Limit())
	assert.Equal(t, rate.Limit(1), newLimiter(60).Limit())
	assert.Equal(t, 1, newLimiter(60).Burst())
}
