package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_GenerateRandomLabel(t *testing.T) {
	for i := 0; i < 100; i++ {
		label := GenerateRandomLabel(6)
		require.Len(t, label, 6)
		for _, c := range label {
			require.True(t, strings.ContainsRune(labelAlphabet, c), "unexpected character %q", c)
		}
	}
}
