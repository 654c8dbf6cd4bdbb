package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	codec := NewJSONCodec()

	payload := map[string]interface{}{
		"ship_id": "flagship",
		"buy_in":  21.6,
		"ready":   true,
	}

	data, err := codec.Marshal(payload)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "\n")

	var decoded map[string]interface{}
	require.NoError(t, codec.Unmarshal(data, &decoded))
	assert.Equal(t, "flagship", decoded["ship_id"])
	assert.Equal(t, 21.6, decoded["buy_in"])
	assert.Equal(t, true, decoded["ready"])
}

func TestJSONCodecMarshalError(t *testing.T) {
	codec := NewJSONCodec()

	_, err := codec.Marshal(make(chan int))
	assert.Error(t, err)
}

func TestJSONCodecStats(t *testing.T) {
	codec := NewJSONCodec()

	for i := 0; i < 5; i++ {
		_, err := codec.Marshal(map[string]int{"n": i})
		require.NoError(t, err)
	}

	stats := codec.GetStats()
	assert.Equal(t, int64(5), stats["marshals"])
	assert.Equal(t, int64(5), stats["buffer_gets"])
}

func TestGlobalCodec(t *testing.T) {
	data, err := MarshalJSON(map[string]string{"k": "v"})
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, UnmarshalJSON(data, &decoded))
	assert.Equal(t, "v", decoded["k"])
	assert.NotEmpty(t, Stats())
}
