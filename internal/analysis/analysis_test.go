package analysis

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/sv-hier/internal/config"
	"github.com/robert-at-pretension-io/sv-hier/internal/hierarchy"
	"github.com/robert-at-pretension-io/sv-hier/internal/validator"
)

func writeRecords(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// apbProject mirrors one record file per module, as written by the parser
// integration for a small APB/SPI design.
func apbProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeRecords(t, dir, map[string]string{
		"APB_SPI_top.json": `{
			"path": "rtl/APB_SPI_top.sv",
			"name": "APB_SPI_top",
			"ports": ["PCLK", "PRESETn", "MOSI", "MISO"],
			"parameters": [],
			"imports": [],
			"instances": {"name": ["u_apb", "u_spi"], "type": ["APB_SLAVE", "SPI_MASTER"]}
		}`,
		"APB_SLAVE.json": `{
			"path": "rtl/APB_SLAVE.sv",
			"name": "APB_SLAVE",
			"ports": ["PCLK", "PSEL"],
			"instances": {"name": ["u_fifo", "u_sync"], "type": ["FIFO", "CDC_SYNC"]}
		}`,
		"lib/leaves.json": `[
			{"path": "rtl/SPI_MASTER.sv", "name": "SPI_MASTER", "instances": {"name": ["u_fifo"], "type": ["FIFO"]}},
			{"path": "rtl/FIFO.sv", "name": "FIFO", "parameters": ["DEPTH"]}
		]`,
		"broken.json": `not json`,
	})
	return dir
}

func TestRun(t *testing.T) {
	t.Run("detects and expands the top module", func(t *testing.T) {
		dir := apbProject(t)
		res, err := New(nil, nil).Run(context.Background(), dir)
		require.NoError(t, err)

		assert.Len(t, res.Files, 4)
		assert.Equal(t, []string{"APB_SPI_top"}, res.Detected)
		require.Equal(t, []string{"APB_SPI_top"}, res.Forest.Tops)

		root, ok := res.Forest.Tree("APB_SPI_top")
		require.True(t, ok)
		assert.Equal(t, hierarchy.KindRoot, root.Kind)
		require.Len(t, root.Children, 2)

		apb := root.Children[0]
		assert.Equal(t, hierarchy.KindBranch, apb.Kind)
		assert.Equal(t, "u_apb", apb.Name)
		require.Len(t, apb.Children, 2)
		assert.Equal(t, hierarchy.KindLeaf, apb.Children[0].Kind)
		assert.Equal(t, hierarchy.KindUnresolved, apb.Children[1].Kind)
		assert.Equal(t, "CDC_SYNC", apb.Children[1].Ref)

		spi := root.Children[1]
		assert.Equal(t, hierarchy.KindBranch, spi.Kind)
		assert.Equal(t, 6, root.Count())

		require.Len(t, res.Load.ParseErrors, 1)
		assert.Equal(t, filepath.Join(dir, "broken.json"), res.Load.ParseErrors[0].File)

		require.Len(t, res.Lint.Violations, 2)
		assert.Equal(t, "unreadable_file", res.Lint.Violations[0].Rule)
		assert.Equal(t, filepath.Join(dir, "broken.json"), res.Lint.Violations[0].File)
		assert.Equal(t, "unresolved_instance", res.Lint.Violations[1].Rule)
		assert.Equal(t, "APB_SLAVE", res.Lint.Violations[1].Module)
		assert.True(t, res.Lint.HasErrors())
	})

	t.Run("explicit tops win over config and detection", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Tops = []string{"FIFO"}
		a := New(cfg, nil)

		res, err := a.Run(context.Background(), apbProject(t))
		require.NoError(t, err)
		assert.Equal(t, []string{"FIFO"}, res.Forest.Tops)
		assert.Equal(t, hierarchy.KindRoot, res.Forest.Trees["FIFO"].Kind)

		a.Tops = []string{"APB_SLAVE", "GHOST"}
		res, err = a.Run(context.Background(), apbProject(t))
		require.NoError(t, err)
		assert.Equal(t, []string{"APB_SLAVE", "GHOST"}, res.Forest.Tops)
		assert.Equal(t, []string{"GHOST"}, res.Forest.Missing)
		assert.True(t, res.Lint.HasErrors())
	})

	t.Run("schema rejections surface in the report", func(t *testing.T) {
		dir := t.TempDir()
		writeRecords(t, dir, map[string]string{
			"a.json": `{"name": "a", "ports": [1]}`,
			"b.json": `{"name": "b"}`,
		})

		res, err := New(nil, nil).Run(context.Background(), dir)
		require.NoError(t, err)
		require.Len(t, res.Rejected, 1)
		assert.Equal(t, filepath.Join(dir, "a.json"), res.Rejected[0].Path)
		assert.Equal(t, []string{"b"}, res.Registry.Names())
	})

	t.Run("cycles are reported, not fatal", func(t *testing.T) {
		dir := t.TempDir()
		writeRecords(t, dir, map[string]string{
			"design.json": `{
				"top": {"name": "top", "instances": {"name": ["u_a"], "type": ["a"]}},
				"a": {"name": "a", "instances": {"name": ["u_b"], "type": ["b"]}},
				"b": {"name": "b", "instances": {"name": ["u_a"], "type": ["a"]}}
			}`,
		})

		res, err := New(nil, nil).Run(context.Background(), dir)
		require.NoError(t, err)
		require.Len(t, res.Forest.Cycles, 1)
		assert.Equal(t, []string{"a", "b", "a"}, res.Forest.Cycles[0].Chain)
		assert.True(t, res.Lint.HasErrors())
	})

	t.Run("timing stream", func(t *testing.T) {
		dir := apbProject(t)
		a := New(nil, nil)
		a.TimingPath = filepath.Join(t.TempDir(), "timing.jsonl")
		a.SkipLint = true

		res, err := a.Run(context.Background(), dir)
		require.NoError(t, err)
		assert.Empty(t, res.Lint.Violations)

		var phases []string
		for _, ev := range res.Timings {
			phases = append(phases, ev.Phase)
		}
		assert.Equal(t, []string{"scan", "load", "register", "hierarchy", "total"}, phases)

		raw, err := os.ReadFile(a.TimingPath)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"phase":"total"`)
	})

	t.Run("missing root", func(t *testing.T) {
		_, err := New(nil, nil).Run(context.Background(), filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})
}

func TestReportMatchesContract(t *testing.T) {
	res, err := New(nil, nil).Run(context.Background(), apbProject(t))
	require.NoError(t, err)

	report := res.Report()
	require.Len(t, report.Trees, 1)
	assert.Len(t, report.Trees[0].Fingerprint, 16)
	assert.NotNil(t, report.Cycles)
	assert.NotNil(t, report.Missing)

	v, err := validator.NewOutputValidator()
	require.NoError(t, err)
	assert.NoError(t, v.Validate(report))

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"unresolved"`)

	fv, err := validator.NewFactsValidator()
	require.NoError(t, err)
	assert.NoError(t, fv.Validate(res.Facts()))
}
