package names

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForIDMatchesScenarioFixture(t *testing.T) {
	// spec.md §8 scenario 1: id 42 names the turtle "Daniel".
	require.Equal(t, "Daniel", ForID(42))
}

func TestForIDOutOfRangeFallsBack(t *testing.T) {
	require.Equal(t, FallbackName, ForID(uint64(len(List))))
	require.Equal(t, FallbackName, ForID(1<<20))
}

func TestForIDIsStableByIndex(t *testing.T) {
	for i, name := range List {
		require.Equal(t, name, ForID(uint64(i)))
	}
}
