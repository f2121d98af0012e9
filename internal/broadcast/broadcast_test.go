package broadcast

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeBothFormats(t *testing.T) {
	t.Parallel()
	ev := NewEvent(TypeSymbol, "abc", map[string]any{
		"symbol":          "Q",
		"symbols_emitted": uint64(3),
		"code_ready":      true,
		"regions":         []any{map[string]any{"x": 0, "y": 20}},
	})

	se, err := Serialize(ev)
	require.NoError(t, err)
	assert.Equal(t, TypeSymbol, se.Type)

	var decoded Event
	require.NoError(t, json.Unmarshal(se.JSONData, &decoded))
	assert.Equal(t, "abc", decoded.Session)
	assert.Equal(t, "Q", decoded.Data["symbol"])
	assert.Equal(t, 3.0, decoded.Data["symbols_emitted"])

	st, err := DecodeProtobuf(se.ProtobufData)
	require.NoError(t, err)
	fields := st.AsMap()
	assert.Equal(t, TypeSymbol, fields["type"])
	assert.Equal(t, "abc", fields["session"])
	data := fields["data"].(map[string]any)
	assert.Equal(t, "Q", data["symbol"])
	assert.Equal(t, true, data["code_ready"])
	assert.Equal(t, 3.0, data["symbols_emitted"])
}

func TestSerializeRejectsUnsupportedValues(t *testing.T) {
	t.Parallel()
	_, err := Serialize(NewEvent(TypeTick, "s", map[string]any{"bad": struct{}{}}))
	assert.Error(t, err)
}

func TestSerializeNilData(t *testing.T) {
	t.Parallel()
	se, err := Serialize(Event{Type: TypeState, Session: "s"})
	require.NoError(t, err)
	st, err := DecodeProtobuf(se.ProtobufData)
	require.NoError(t, err)
	assert.Empty(t, st.AsMap()["data"])
}

func TestHubFanout(t *testing.T) {
	t.Parallel()
	h := NewHub(2)

	id1, ch1 := h.Subscribe()
	_, ch2 := h.Subscribe()
	assert.Equal(t, 2, h.ClientCount())

	require.NoError(t, h.Publish(context.Background(), NewEvent(TypeTick, "s", nil)))
	for _, ch := range []<-chan *SerializedEvent{ch1, ch2} {
		se := <-ch
		assert.Equal(t, TypeTick, se.Type)
	}

	h.Unsubscribe(id1)
	_, ok := <-ch1
	assert.False(t, ok, "unsubscribe closes the channel")
	assert.Equal(t, 1, h.ClientCount())
	h.Unsubscribe(id1)
}

func TestHubSlowClientDoesNotBlock(t *testing.T) {
	t.Parallel()
	h := NewHub(1)
	_, ch := h.Subscribe()

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Publish(context.Background(), NewEvent(TypeTick, "s", map[string]any{"i": i})))
	}
	assert.Equal(t, uint64(4), h.Dropped())
	assert.Len(t, ch, 1)
}

func TestHubClose(t *testing.T) {
	t.Parallel()
	h := NewHub(0)
	_, ch := h.Subscribe()
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, h.ClientCount())

	_, late := h.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}
