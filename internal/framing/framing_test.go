package framing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	A int    `json:"a"`
	B string `json:"b"`
}

func TestDecoderRoundTrip(t *testing.T) {
	msg1, err := Encode(sample{A: 1, B: "one"})
	require.NoError(t, err)
	msg2, err := Encode(sample{A: 2, B: "two"})
	require.NoError(t, err)

	partial := []byte(`{"a":3`)

	dec := NewDecoder()
	frames := dec.Feed(append(append(append([]byte{}, msg1...), msg2...), partial...))

	require.Len(t, frames, 2)

	var out1, out2 sample
	require.NoError(t, decodeInto(frames[0], &out1))
	require.NoError(t, decodeInto(frames[1], &out2))
	require.Equal(t, sample{A: 1, B: "one"}, out1)
	require.Equal(t, sample{A: 2, B: "two"}, out2)
}

func TestDecoderBuffersPartialAcrossFeeds(t *testing.T) {
	dec := NewDecoder()

	msg, err := Encode(sample{A: 9, B: "nine"})
	require.NoError(t, err)

	split := len(msg) / 2
	require.Empty(t, dec.Feed(msg[:split]))

	frames := dec.Feed(msg[split:])
	require.Len(t, frames, 1)

	var out sample
	require.NoError(t, decodeInto(frames[0], &out))
	require.Equal(t, sample{A: 9, B: "nine"}, out)
}

func TestDecoderNoSplitOrMerge(t *testing.T) {
	msg, err := Encode(sample{A: 1})
	require.NoError(t, err)

	dec := NewDecoder()
	frames := dec.Feed(append(append(append([]byte{}, msg...), msg...), []byte("tail")...))
	require.Len(t, frames, 2)
	require.Equal(t, frames[0], frames[1])
}

func decodeInto(frame []byte, v *sample) error {
	return json.Unmarshal(frame, v)
}
