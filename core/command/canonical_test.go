package command_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breadboard-sim/breadboard/core/command"
)

func sampleStream() []command.Command {
	return []command.Command{
		command.ProgramStart("fp"),
		command.PinMode(13, 1),
		command.DigitalWrite(13, 1),
		command.Delay(1000),
		command.LoopLimitReached(1),
	}
}

func TestCanonicalEncodeIsStable(t *testing.T) {
	cmd := command.LibraryMethodCall("lcd", "setCursor", []command.Value{
		command.Int(0), command.Int(1),
	})
	first, err := command.CanonicalEncode(cmd)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := command.CanonicalEncode(cmd)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestStreamHashIsDeterministic(t *testing.T) {
	h1, err := command.StreamHash(sampleStream())
	require.NoError(t, err)
	h2, err := command.StreamHash(sampleStream())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestStreamHashSeesOrder(t *testing.T) {
	stream := sampleStream()
	reordered := append([]command.Command{}, stream...)
	reordered[1], reordered[2] = reordered[2], reordered[1]

	h1, err := command.StreamHash(stream)
	require.NoError(t, err)
	h2, err := command.StreamHash(reordered)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2, "reordering commands must change the stream hash")
}

func TestStreamHashSeesBoundaries(t *testing.T) {
	// Splitting one command's content differently must not collide.
	a := []command.Command{command.SerialPrint("ab", false), command.SerialPrint("c", false)}
	b := []command.Command{command.SerialPrint("a", false), command.SerialPrint("bc", false)}

	h1, err := command.StreamHash(a)
	require.NoError(t, err)
	h2, err := command.StreamHash(b)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestStreamHashEmpty(t *testing.T) {
	h, err := command.StreamHash(nil)
	require.NoError(t, err)
	assert.NotEqual(t, [32]byte{}, h, "empty stream still hashes to the empty-input digest")
}
