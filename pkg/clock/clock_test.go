package clock

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestOrReal(t *testing.T) {
	assert.NotNil(t, OrReal(nil))

	fake := clockwork.NewFakeClock()
	assert.Same(t, fake, OrReal(fake))
}

func TestRealAdvances(t *testing.T) {
	c := Real()
	start := c.Now()
	c.Sleep(time.Millisecond)
	assert.True(t, c.Since(start) >= time.Millisecond)
}
