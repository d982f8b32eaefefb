package ratewindow_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vigilare/vigilare/internal/queryengine/ratewindow"
)

func TestAllowPermitsUpToBurstThenBlocks(t *testing.T) {
	w := ratewindow.New(3, time.Minute, 100)

	assert.True(t, w.Allow("1.2.3.4"))
	assert.True(t, w.Allow("1.2.3.4"))
	assert.True(t, w.Allow("1.2.3.4"))
	assert.False(t, w.Allow("1.2.3.4"))
}

func TestAllowTracksDistinctIPsIndependently(t *testing.T) {
	w := ratewindow.New(1, time.Minute, 100)

	assert.True(t, w.Allow("1.1.1.1"))
	assert.True(t, w.Allow("2.2.2.2"))
	assert.False(t, w.Allow("1.1.1.1"))
}

func TestAllowClearsTableOnceOverMaxTracked(t *testing.T) {
	w := ratewindow.New(1, time.Minute, 2)

	assert.True(t, w.Allow("1.1.1.1"))
	assert.True(t, w.Allow("2.2.2.2"))
	assert.True(t, w.Allow("3.3.3.3"))
	assert.Equal(t, 1, w.Tracked())
}
