package ring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddThenContains(t *testing.T) {
	r := New(10)
	r.Add("https://example.com/a")
	assert.True(t, r.Contains("https://example.com/a"))
	assert.False(t, r.Contains("https://example.com/b"))
}

func TestEvictsOldestAtCapacity(t *testing.T) {
	r := New(2)
	r.Add("a")
	r.Add("b")
	r.Add("c")

	assert.False(t, r.Contains("a"))
	assert.True(t, r.Contains("b"))
	assert.True(t, r.Contains("c"))
	assert.Equal(t, 2, r.Len())
}

func TestAddIsIdempotentAndDoesNotEvictOnReAdd(t *testing.T) {
	r := New(2)
	r.Add("a")
	r.Add("b")
	r.Add("a")

	assert.True(t, r.Contains("a"))
	assert.True(t, r.Contains("b"))
	assert.Equal(t, 2, r.Len())
}

func TestLenGrowsToCapacityThenStaysFlat(t *testing.T) {
	r := New(5)
	for i := 0; i < 20; i++ {
		r.Add(fmt.Sprintf("url-%d", i))
	}
	assert.Equal(t, 5, r.Len())
}
