package headers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Run("splits_on_first_colon", func(t *testing.T) {
		m := Decode("Referer: https://example.com:8443/path\nAccept: */*")
		require.Equal(t, 2, m.Len())
		v, ok := m.Get("Referer")
		require.True(t, ok)
		assert.Equal(t, "https://example.com:8443/path", v)
		assert.Equal(t, []string{"Referer", "Accept"}, m.Keys())
	})

	t.Run("drops_lines_without_colon_or_value", func(t *testing.T) {
		m := Decode("no colon here\nX-Empty:\nX-Blank:    \n: orphan value\n\nAccept: text/html")
		assert.Equal(t, []string{"Accept"}, m.Keys())
	})

	t.Run("trims_whitespace_and_carriage_returns", func(t *testing.T) {
		m := Decode("  User-Agent :  Mozilla/5.0 \r\nAccept: application/json\r\n")
		v, _ := m.Get("User-Agent")
		assert.Equal(t, "Mozilla/5.0", v)
		v, _ = m.Get("Accept")
		assert.Equal(t, "application/json", v)
	})

	t.Run("last_duplicate_wins", func(t *testing.T) {
		m := Decode("X-Token: one\nAccept: */*\nX-Token: two")
		assert.Equal(t, []string{"X-Token", "Accept"}, m.Keys())
		v, _ := m.Get("X-Token")
		assert.Equal(t, "two", v)
	})

	t.Run("empty_text", func(t *testing.T) {
		assert.Equal(t, 0, Decode("").Len())
	})
}

func TestEncodeRoundTrip(t *testing.T) {
	texts := []string{
		"User-Agent: Mozilla/5.0\nAccept: application/json",
		"Authorization: Bearer abc:def\nContent-Type: text/plain; charset=utf-8\nX-A: 1",
		"garbage\nX-Only: value",
	}
	for _, text := range texts {
		decoded := Decode(text)
		again := Decode(Encode(decoded))
		assert.True(t, decoded.Equal(again), "round trip changed %q", text)
	}
}

func TestEncodePreservesOrder(t *testing.T) {
	var m Map
	m.Set("B", "2")
	m.Set("A", "1")
	m.Set("C", "3")
	assert.Equal(t, "B: 2\nA: 1\nC: 3", Encode(m))
}

func TestMapJSON(t *testing.T) {
	var m Map
	m.Set("content-type", "application/json")
	m.Set("a-header", "x")

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"content-type":"application/json","a-header":"x"}`, string(data))

	var back Map
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, m.Equal(back))

	empty, err := json.Marshal(Map{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(empty))
}
