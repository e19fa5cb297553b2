// api/schemas/graph_test.go
package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionAttributes(t *testing.T) {
	t.Parallel()

	t.Run("should read the coordinate pair", func(t *testing.T) {
		t.Parallel()
		p := PositionFromAttributes(map[string]string{"xx": "120.5", "yy": "88"})
		assert.Equal(t, Point{X: 120.5, Y: 88}, p)
	})

	t.Run("should fall back to zero for missing or malformed values", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, Point{}, PositionFromAttributes(nil))
		assert.Equal(t, Point{}, PositionFromAttributes(map[string]string{"xx": "abc"}))
		assert.Equal(t, Point{Y: 7}, PositionFromAttributes(map[string]string{"yy": "7"}))
	})

	t.Run("should round-trip through the attribute map", func(t *testing.T) {
		t.Parallel()
		attrs := map[string]string{"env": "prod"}
		StorePosition(attrs, Point{X: 33.25, Y: 400})
		assert.Equal(t, "33.25", attrs["xx"])
		assert.Equal(t, "400", attrs["yy"])
		assert.Equal(t, "prod", attrs["env"], "unrelated attributes stay put")
		assert.Equal(t, Point{X: 33.25, Y: 400}, PositionFromAttributes(attrs))
	})
}

func TestParseAttributesCSV(t *testing.T) {
	t.Parallel()

	t.Run("should parse key=value pairs", func(t *testing.T) {
		t.Parallel()
		attrs, err := ParseAttributesCSV("env=prod, region=eu-west-1")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"env": "prod", "region": "eu-west-1"}, attrs)
	})

	t.Run("should skip empty segments", func(t *testing.T) {
		t.Parallel()
		attrs, err := ParseAttributesCSV("a=1,,b=2,")
		require.NoError(t, err)
		assert.Len(t, attrs, 2)
	})

	t.Run("should reject a segment without an equals sign", func(t *testing.T) {
		t.Parallel()
		_, err := ParseAttributesCSV("a=1,standalone")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "standalone")
	})

	t.Run("should keep the value's embedded equals signs", func(t *testing.T) {
		t.Parallel()
		attrs, err := ParseAttributesCSV("query=a=b")
		require.NoError(t, err)
		assert.Equal(t, "a=b", attrs["query"])
	})
}

func TestHyperedgeEndpoints(t *testing.T) {
	t.Parallel()

	h := Hyperedge{
		ID:     "a,b,c",
		Source: []string{"a"},
		Target: []string{"b"},
		Other:  []string{"c"},
	}

	t.Run("should enumerate participants in endpoint order", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []string{"a", "b", "c"}, h.Participants())
	})

	t.Run("should find references in any endpoint set", func(t *testing.T) {
		t.Parallel()
		assert.True(t, h.References("a"))
		assert.True(t, h.References("b"))
		assert.True(t, h.References("c"))
		assert.False(t, h.References("d"))
	})

	t.Run("Participants should return a fresh slice", func(t *testing.T) {
		t.Parallel()
		got := h.Participants()
		got[0] = "mutated"
		assert.Equal(t, []string{"a"}, h.Source)
	})
}
