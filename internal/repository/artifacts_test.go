package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVariantsFromColumns(t *testing.T) {
	assert.Nil(t, variantsFromColumns(nil, nil, nil, nil))

	a, b, c, d := "a", "b", "c", "d"
	got := variantsFromColumns(&a, &b, &c, &d)
	if assert.NotNil(t, got) {
		assert.True(t, got.Complete())
		assert.Equal(t, "d", got.Story)
	}

	partial := variantsFromColumns(&a, nil, nil, nil)
	if assert.NotNil(t, partial) {
		assert.False(t, partial.Complete())
	}
}
