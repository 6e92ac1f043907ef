package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"scalars equal", "python3.12", "python3.12", true},
		{"scalars differ", int32(3), int32(30), false},
		{"nil both sides", nil, nil, true},
		{"nil vs map", nil, map[string]any{}, false},
		{
			"maps equal",
			map[string]any{"Variables": map[string]string{"A": "1"}},
			map[string]any{"Variables": map[string]string{"A": "1"}},
			true,
		},
		{
			"map value differs",
			map[string]any{"Variables": map[string]string{"A": "1"}},
			map[string]any{"Variables": map[string]string{"A": "2"}},
			false,
		},
		{
			"key missing on one side",
			map[string]any{"A": 1, "B": 2},
			map[string]any{"A": 1},
			false,
		},
		{
			"key extra on other side",
			map[string]any{"A": 1},
			map[string]any{"A": 1, "B": 2},
			false,
		},
		{
			"nested maps",
			map[string]any{"Env": map[string]any{"Variables": map[string]string{"A": "1"}}},
			map[string]any{"Env": map[string]any{"Variables": map[string]string{"A": "1"}}},
			true,
		},
		{"slices equal", []string{"a", "b"}, []string{"a", "b"}, true},
		{"slice order matters", []string{"a", "b"}, []string{"b", "a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestChangedKeys(t *testing.T) {
	local := map[string]any{
		"Runtime": "python3.12",
		"Timeout": int32(3),
		"Layers":  nil,
	}
	remote := map[string]any{
		"Runtime": "python3.12",
		"Timeout": int32(30),
		"Layers":  nil,
	}

	changed := changedKeys(local, remote)
	assert.Equal(t, []string{"Timeout"}, changed)
}

func TestChangedKeysMissingRemoteKey(t *testing.T) {
	local := map[string]any{"Description": "demo"}

	changed := changedKeys(local, map[string]any{})
	assert.Equal(t, []string{"Description"}, changed)
}

func TestChangedKeysInSync(t *testing.T) {
	local := map[string]any{"Runtime": "python3.12", "Layers": nil}
	remote := map[string]any{"Runtime": "python3.12", "Layers": nil, "Extra": "ignored"}

	assert.Empty(t, changedKeys(local, remote))
}
