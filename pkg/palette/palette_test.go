package palette

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradient(t *testing.T) {
	got, err := Gradient("#0000FF", "#FF0000", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"#0000ff", "#00ff00", "#ff0000"}, got)

	got, err = Gradient("#440154", "#fde725", 6)
	require.NoError(t, err)
	require.Len(t, got, 6)
	assert.Equal(t, "#440154", got[0])
	assert.Equal(t, "#fde725", got[5])
}

func TestGradient_Sizes(t *testing.T) {
	got, err := Gradient("#123456", "#abcdef", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"#123456"}, got)

	got, err = Gradient("#123456", "#abcdef", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Gradient("blue", "#abcdef", 3)
	assert.ErrorIs(t, err, ErrInvalidColor)
}

func TestResolve(t *testing.T) {
	palettes := map[string][]string{
		"teal":             DefaultColors,
		"gradient_viridis": {"#440154", "#fde725"},
		"broken":           {"#12"},
	}

	got, err := Resolve("teal", palettes, [2]string{}, 3)
	require.NoError(t, err)
	assert.Equal(t, DefaultColors, got)

	got, err = Resolve("gradient_viridis", palettes, [2]string{}, 4)
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, "#440154", got[0])

	got, err = Resolve(Custom, palettes, [2]string{"#000000", "#ffffff"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"#000000", "#ffffff"}, got)

	_, err = Resolve("missing", palettes, [2]string{}, 3)
	assert.ErrorIs(t, err, ErrUnknownPalette)

	_, err = Resolve("broken", palettes, [2]string{}, 3)
	assert.ErrorIs(t, err, ErrInvalidColor)
}

func TestNames(t *testing.T) {
	names := Names(map[string][]string{"teal": nil, "gradient_a": nil})
	assert.Equal(t, []string{"gradient_a", "teal", Custom}, names)
}

func TestCycle(t *testing.T) {
	colors := []string{"#a", "#b", "#c"}
	assert.Equal(t, "#a", Cycle(colors, 0))
	assert.Equal(t, "#c", Cycle(colors, 2))
	assert.Equal(t, "#a", Cycle(colors, 3))
	assert.Equal(t, DefaultColors[1], Cycle(nil, 7))
}
