package mode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	assert.True(t, Keyword.IsValid())
	assert.True(t, Semantic.IsValid())
	assert.False(t, Mode("hybrid").IsValid())
	assert.False(t, Mode("").IsValid())
}
