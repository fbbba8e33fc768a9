package httpx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadAllLimit(t *testing.T) {
	b, err := ReadAllLimit(strings.NewReader("12345"), 5)
	require.NoError(t, err)
	require.Equal(t, "12345", string(b))

	_, err = ReadAllLimit(strings.NewReader("123456"), 5)
	require.ErrorIs(t, err, ErrTooLarge)
}
