package sliceutils_test

import (
	"testing"

	"github.com/mechatbot/mechatbot/internal/sliceutils"
	"github.com/stretchr/testify/assert"
)

func TestCut(t *testing.T) {
	t.Run("Given negative start, when cutting, then take from the tail", func(t *testing.T) {
		slice := []int{1, 2, 3, 4, 5}
		assert.Equal(t, []int{4, 5}, sliceutils.Cut(slice, -2, len(slice)))
	})

	t.Run("Given start beyond length, when cutting from tail, then clamp to full slice", func(t *testing.T) {
		slice := []int{1, 2}
		assert.Equal(t, []int{1, 2}, sliceutils.Cut(slice, -10, len(slice)))
	})

	t.Run("Given empty slice, when cutting, then return empty", func(t *testing.T) {
		assert.Empty(t, sliceutils.Cut([]int{}, -3, 0))
	})

	t.Run("Given crossed bounds, when cutting, then return empty", func(t *testing.T) {
		slice := []int{1, 2, 3}
		assert.Empty(t, sliceutils.Cut(slice, 3, 1))
	})
}
