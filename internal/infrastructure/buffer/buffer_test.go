package buffer

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_HoldsMessagesForWindow(t *testing.T) {
	var got []string
	b := New(5*time.Second, func(msg string) { got = append(got, msg) }, zerolog.Nop())

	base := time.Now()
	b.AddAt("update-1", base)

	assert.Zero(t, b.Flush(base.Add(4*time.Second)), "nothing is due before the window elapses")
	assert.Empty(t, got)

	assert.Equal(t, 1, b.Flush(base.Add(5*time.Second)), "due exactly at release time")
	assert.Equal(t, []string{"update-1"}, got)
	assert.Zero(t, b.Len())
}

func TestBuffer_FlushesInReleaseTimeOrder(t *testing.T) {
	var got []string
	b := New(5*time.Second, func(msg string) { got = append(got, msg) }, zerolog.Nop())

	base := time.Now()
	// inserted out of order relative to their own timestamps
	b.AddAt("third", base.Add(2*time.Second))
	b.AddAt("first", base)
	b.AddAt("second", base.Add(1*time.Second))

	require.Equal(t, 3, b.Flush(base.Add(10*time.Second)))
	assert.Equal(t, []string{"first", "second", "third"}, got)
}

func TestBuffer_TiesBreakByInsertionOrder(t *testing.T) {
	var got []string
	b := New(time.Second, func(msg string) { got = append(got, msg) }, zerolog.Nop())

	base := time.Now()
	b.AddAt("a", base)
	b.AddAt("b", base)
	b.AddAt("c", base)

	b.Flush(base.Add(2 * time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestBuffer_PartialFlushKeepsLaterMessages(t *testing.T) {
	var got []string
	b := New(5*time.Second, func(msg string) { got = append(got, msg) }, zerolog.Nop())

	base := time.Now()
	b.AddAt("early", base)
	b.AddAt("late", base.Add(30*time.Second))

	assert.Equal(t, 1, b.Flush(base.Add(6*time.Second)))
	assert.Equal(t, []string{"early"}, got)
	assert.Equal(t, 1, b.Len())

	assert.Equal(t, 1, b.Flush(base.Add(40*time.Second)))
	assert.Equal(t, []string{"early", "late"}, got)
}

func TestBuffer_DoesNotDeduplicate(t *testing.T) {
	var got []string
	b := New(time.Second, func(msg string) { got = append(got, msg) }, zerolog.Nop())

	base := time.Now()
	b.AddAt("same-doc", base)
	b.AddAt("same-doc", base.Add(100*time.Millisecond))

	b.Flush(base.Add(5 * time.Second))
	// coalescing is downstream overwrite semantics, not the buffer's job
	assert.Len(t, got, 2)
}
