package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClockFiresInDeadlineOrder(t *testing.T) {
	c := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	var fired []string

	c.AfterFunc(5*time.Second, func() { fired = append(fired, "five") })
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "two") })
	assert.Equal(t, 2, c.Pending())

	c.Advance(3 * time.Second)
	assert.Equal(t, []string{"two"}, fired)

	c.Advance(2 * time.Second)
	assert.Equal(t, []string{"two", "five"}, fired)
	assert.Equal(t, 0, c.Pending())
}

func TestFakeClockStop(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	called := false
	timer := c.AfterFunc(time.Second, func() { called = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(time.Minute)
	assert.False(t, called)
}

func TestFakeClockChainedTimers(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	count := 0
	var schedule func()
	schedule = func() {
		c.AfterFunc(2*time.Second, func() {
			count++
			if count < 3 {
				schedule()
			}
		})
	}
	schedule()

	c.Advance(10 * time.Second)
	assert.Equal(t, 3, count)
	assert.Equal(t, time.Unix(10, 0), c.Now())
}
