package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ifc-viewer/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return buf.String(), err
}

func resetClassifyFlags() {
	classifyRequirements = ""
	classifyUnconstrained = false
	classifyJSON = false
	classifyList = false
}

func TestVersionCmd(t *testing.T) {
	originalVersion := version
	version = "test-version-1.0.0"
	defer func() { version = originalVersion }()

	out, err := execute(t, "version")
	assert.NoError(t, err)
	assert.Contains(t, out, "ifcview version test-version-1.0.0")
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "classify", "version"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

func TestClassifyCmd(t *testing.T) {
	dir := t.TempDir()
	props, meshes := testutil.SensorModel()
	model := testutil.WriteRecordFile(t, dir, "site.ifcr", props, meshes)
	rules := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte(`
links:
  - link_property_name: Tag
selectable:
  - required_kind: Sensor
`), 0644))

	t.Run("text", func(t *testing.T) {
		defer resetClassifyFlags()
		out, err := execute(t, "classify", model, "--requirements", rules, "--list")
		require.NoError(t, err)
		assert.Contains(t, out, "Items:          3")
		assert.Contains(t, out, "Linked:         2")
		assert.Contains(t, out, "Selectable:     2")
		assert.Contains(t, out, "#100 Sensor")
	})

	t.Run("json", func(t *testing.T) {
		defer resetClassifyFlags()
		out, err := execute(t, "classify", model, "-r", rules, "--json")
		require.NoError(t, err)
		var report classifyReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Equal(t, 3, report.Stats.Items)
		assert.Equal(t, 2, report.Stats.Selectable)
		assert.Equal(t, 0, report.Stats.AlwaysVisible)
	})

	t.Run("unconstrained", func(t *testing.T) {
		defer resetClassifyFlags()
		out, err := execute(t, "classify", model, "--always-visible-when-unconstrained", "--json")
		require.NoError(t, err)
		var report classifyReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Equal(t, 3, report.Stats.AlwaysVisible)
		assert.Equal(t, 0, report.Stats.Selectable)
	})

	t.Run("missing model", func(t *testing.T) {
		defer resetClassifyFlags()
		_, err := execute(t, "classify", filepath.Join(dir, "nope.ifcr"))
		assert.Error(t, err)
	})

	t.Run("bad requirements extension", func(t *testing.T) {
		defer resetClassifyFlags()
		_, err := execute(t, "classify", model, "-r", filepath.Join(dir, "rules.ini"))
		assert.Error(t, err)
	})
}

func TestConfigPath(t *testing.T) {
	path, err := configPath("/etc/viewer.config")
	require.NoError(t, err)
	assert.Equal(t, "/etc/viewer.config", path)

	path, err = configPath("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfigName, filepath.Base(path))
}
