package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	l, err := Parse("py")
	require.NoError(t, err)
	assert.Equal(t, Python, l)

	l, err = Parse("cpp")
	require.NoError(t, err)
	assert.Equal(t, CPlusPlus, l)

	_, err = Parse("cobol")
	assert.Error(t, err)

	_, err = Parse("")
	assert.Error(t, err)
}
