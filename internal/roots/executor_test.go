package roots

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerialExecutor_RunsInOrder(t *testing.T) {
	e := NewSerialExecutor(4)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 20; i++ {
		assert.True(t, e.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	e.Close()

	assert.Len(t, got, 20)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestSerialExecutor_CloseRejectsAndIsIdempotent(t *testing.T) {
	e := NewSerialExecutor(1)
	e.Close()
	e.Close()

	assert.False(t, e.Submit(func() { t.Error("task ran after close") }))
}

func TestInlineExecutor(t *testing.T) {
	ran := false
	assert.True(t, InlineExecutor{}.Submit(func() { ran = true }))
	assert.True(t, ran)
}
