package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing_DropsOldest(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 3; i++ {
		assert.False(t, r.Push(i))
	}
	assert.True(t, r.Push(4))
	assert.True(t, r.Push(5))

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{3, 4, 5}, r.Items())
	assert.Equal(t, []int{5, 4, 3}, r.Newest(0))
	assert.Equal(t, []int{5, 4}, r.Newest(2))
}

func TestRing_Update(t *testing.T) {
	r := NewRing[string](2)
	r.Push("a")
	r.Push("b")
	ok := r.Update(func(s string) bool { return s == "a" }, func(s *string) { *s = "A" })
	assert.True(t, ok)
	assert.Equal(t, []string{"A", "b"}, r.Items())
	assert.False(t, r.Update(func(s string) bool { return s == "z" }, func(*string) {}))
}
