package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	err := NewTransient("ingress", "store write failed", fmt.Errorf("i/o timeout"))
	assert.Equal(t, Transient, Classify(err))
	assert.True(t, IsRetryable(err))

	perm := NewPermanent("ingress", "corrupt payload", nil)
	assert.Equal(t, Permanent, Classify(perm))
	assert.False(t, IsRetryable(perm))
}

func TestClassifyUnwrapsWrapper(t *testing.T) {
	inner := NewConflict("position", "SOD after intraday", nil)
	wrapped := fmt.Errorf("dispatch failed: %w", inner)
	assert.Equal(t, Conflict, Classify(wrapped))
}

func TestClassifyUnclassifiedIsPermanent(t *testing.T) {
	assert.Equal(t, Permanent, Classify(fmt.Errorf("plain error")))
}

func TestBackoffSequence(t *testing.T) {
	b := DefaultBackoff()

	d1, exhausted := b.Delay(1)
	assert.False(t, exhausted)
	assert.Equal(t, b.Base, d1)

	d2, _ := b.Delay(2)
	assert.Equal(t, 200_000_000, int(d2))

	_, exhausted = b.Delay(6)
	assert.True(t, exhausted)
}

func TestBackoffCapsAtFiveSeconds(t *testing.T) {
	b := DefaultBackoff()
	d, exhausted := b.Delay(5)
	assert.False(t, exhausted)
	assert.LessOrEqual(t, d, b.Cap)
}
