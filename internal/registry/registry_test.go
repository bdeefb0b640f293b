package registry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/sv-hier/internal/record"
)

func mod(name string, insts ...record.Instance) record.ModuleRecord {
	return record.ModuleRecord{Path: name + ".sv", Name: name, Instances: insts}
}

func inst(name, typ string) record.Instance {
	return record.Instance{Name: name, Type: typ}
}

func TestRegistryAddAndLookup(t *testing.T) {
	t.Run("empty registry", func(t *testing.T) {
		reg := New(nil)

		assert.Equal(t, 0, reg.Len())
		assert.Empty(t, reg.Names())
		_, ok := reg.Lookup("anything")
		assert.False(t, ok)
	})

	t.Run("names follow insertion order", func(t *testing.T) {
		reg, rejected := Build([]record.ModuleRecord{mod("c"), mod("a"), mod("b")}, nil)

		assert.Empty(t, rejected)
		assert.Equal(t, []string{"c", "a", "b"}, reg.Names())
		rec, ok := reg.Lookup("a")
		require.True(t, ok)
		assert.Equal(t, "a.sv", rec.Path)
	})

	t.Run("malformed record is rejected without aborting", func(t *testing.T) {
		reg, rejected := Build([]record.ModuleRecord{mod("a"), {Path: "broken.sv"}, mod("b")}, nil)

		assert.Equal(t, []string{"a", "b"}, reg.Names())
		require.Len(t, rejected, 1)
		assert.Equal(t, "broken.sv", rejected[0].Path)
		assert.Equal(t, "empty module name", rejected[0].Reason)
	})

	t.Run("add returns malformed error", func(t *testing.T) {
		reg := New(nil)

		err := reg.Add(record.ModuleRecord{})

		assert.ErrorIs(t, err, record.ErrMalformedRecord)
		assert.Equal(t, 0, reg.Len())
	})

	t.Run("duplicate name replaces in place", func(t *testing.T) {
		first := mod("a")
		second := record.ModuleRecord{Path: "override.sv", Name: "a"}

		reg, _ := Build([]record.ModuleRecord{first, mod("b"), second}, nil)

		assert.Equal(t, []string{"a", "b"}, reg.Names())
		rec, ok := reg.Lookup("a")
		require.True(t, ok)
		assert.Equal(t, "override.sv", rec.Path)
		assert.Equal(t, []Override{{Name: "a", PreviousPath: "a.sv", Path: "override.sv"}}, reg.Overrides())
	})

	t.Run("stored records are copies", func(t *testing.T) {
		rec := mod("a", inst("u0", "b"))
		reg := New(nil)
		require.NoError(t, reg.Add(rec))

		rec.Name = "changed"

		got, ok := reg.Lookup("a")
		require.True(t, ok)
		assert.Equal(t, "a", got.Name)
	})
}

func TestRegistryParentsOf(t *testing.T) {
	reg, _ := Build([]record.ModuleRecord{
		mod("top", inst("u0", "mid"), inst("u1", "leaf"), inst("u2", "leaf")),
		mod("mid", inst("u0", "leaf")),
		mod("leaf"),
		mod("loop", inst("self", "loop")),
		mod("holes", inst("u0", ""), inst("u1", "ghost")),
	}, nil)

	t.Run("each parent reported once in enumeration order", func(t *testing.T) {
		parents := reg.ParentsOf("leaf")

		require.Len(t, parents, 2)
		assert.Equal(t, "top", parents[0].Name)
		assert.Equal(t, "mid", parents[1].Name)
	})

	t.Run("no parents", func(t *testing.T) {
		assert.Empty(t, reg.ParentsOf("top"))
		assert.Empty(t, reg.ParentsOf("holes"))
	})

	t.Run("self instantiation counts as parent", func(t *testing.T) {
		parents := reg.ParentsOf("loop")

		require.Len(t, parents, 1)
		assert.Equal(t, "loop", parents[0].Name)
	})

	t.Run("empty type is never a reference", func(t *testing.T) {
		assert.Empty(t, reg.ParentsOf(""))
	})

	t.Run("undefined type still has parents", func(t *testing.T) {
		parents := reg.ParentsOf("ghost")

		require.Len(t, parents, 1)
		assert.Equal(t, "holes", parents[0].Name)
	})
}

func TestRegistryRecords(t *testing.T) {
	reg, _ := Build([]record.ModuleRecord{mod("b"), mod("a")}, nil)

	recs := reg.Records()

	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[0].Name)
	assert.Equal(t, "a", recs[1].Name)
}

func TestRegistryWarnings(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	_, rejected := Build([]record.ModuleRecord{
		{Path: "broken.sv"},
		mod("a"),
		{Path: "a_v2.sv", Name: "a"},
	}, logger)
	require.Len(t, rejected, 1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var malformed, redefined map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &malformed))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &redefined))

	assert.Equal(t, "WARN", malformed["level"])
	assert.Equal(t, "rejecting module record", malformed["msg"])
	assert.Equal(t, "broken.sv", malformed["path"])
	assert.Contains(t, malformed["error"], "empty module name")

	assert.Equal(t, "WARN", redefined["level"])
	assert.Equal(t, "a", redefined["module"])
	assert.Equal(t, "a.sv", redefined["previous"])
	assert.Equal(t, "a_v2.sv", redefined["path"])
}
