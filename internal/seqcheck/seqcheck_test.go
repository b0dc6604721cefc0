package seqcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecker_Enter(t *testing.T) {
	c := &Checker{}

	exit := c.Enter()
	assert.Panics(t, func() { c.Enter() })
	exit()

	// After the first operation finished, the next one is fine, also from
	// another goroutine.
	done := make(chan struct{})
	go func() {
		defer close(done)

		defer c.Enter()()
	}()
	<-done

	defer c.Enter()()
}
