package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReal_ReturnsUTC(t *testing.T) {
	now := Real().Now()
	assert.Equal(t, time.UTC, now.Location())
}

func TestFake_SetAndAdvance(t *testing.T) {
	f := NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2026, f.Now().Year())

	f.Advance(24 * time.Hour)
	assert.Equal(t, 2, f.Now().Day())

	f.Set(time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2027, f.Now().Year())
}
