package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coolsim/internal/plant"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func warmupCSV(times ...int64) string {
	names := plant.ControlNames()
	var b strings.Builder
	b.WriteString("time," + strings.Join(names, ",") + "\n")
	for _, ts := range times {
		b.WriteString(fmt.Sprintf("%d", ts))
		for range names {
			b.WriteString(",0.5")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func baselineCSV() string {
	cols := []string{"time"}
	cols = append(cols, plant.OutputNames()...)
	cols = append(cols, plant.ControlNames()...)

	var b strings.Builder
	b.WriteString(strings.Join(cols, ",") + "\n")
	b.WriteString("0")
	for range cols[1:] {
		b.WriteString(",1.25")
	}
	b.WriteString("\n")
	return b.String()
}

func TestLoadWarmupActions(t *testing.T) {
	table, err := LoadWarmupActions(writeFile(t, WarmupFile, warmupCSV(0, 300, 600)))
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())

	frame, ok := table.Frame(300)
	require.True(t, ok)
	assert.Len(t, frame, plant.ControlCount())
	assert.Equal(t, 0.5, frame["CHI01"])

	_, ok = table.Frame(900)
	assert.False(t, ok)
}

func TestLoadWarmupActions_Empty(t *testing.T) {
	_, err := LoadWarmupActions(writeFile(t, WarmupFile, warmupCSV()))
	assert.Error(t, err)
}

func TestLoadWarmupActions_MissingTimeColumn(t *testing.T) {
	_, err := LoadWarmupActions(writeFile(t, WarmupFile, "CHI01,CHI02\n1,0\n"))
	assert.Error(t, err)
}

func TestLoadBaseline(t *testing.T) {
	b, err := LoadBaseline(writeFile(t, BaselineFile, baselineCSV()))
	require.NoError(t, err)

	assert.Len(t, b.Outputs, plant.OutputCount())
	assert.Len(t, b.Inputs, plant.ControlCount())
	assert.Equal(t, 1.25, b.Outputs["P_Chillers_sum"])
	assert.Equal(t, 1.25, b.Inputs["Tchws_set_CHI"])
	_, hasTime := b.Outputs["time"]
	assert.False(t, hasTime)
}

func TestLoadBaseline_IncompleteOutputs(t *testing.T) {
	content := "time,Pchi1,CHI01\n0,152000,1\n"
	_, err := LoadBaseline(writeFile(t, BaselineFile, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared outputs")
}

func TestLoadBaseline_NonNumericValue(t *testing.T) {
	content := "time,Pchi1\n0,not-a-number\n"
	_, err := LoadBaseline(writeFile(t, BaselineFile, content))
	assert.Error(t, err)
}

func TestLoadVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, VersionFile), []byte("0.2.0\n"), 0o644))

	version, err := LoadVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, "0.2.0", version)
}

func TestLoadVersion_Missing(t *testing.T) {
	_, err := LoadVersion(t.TempDir())
	assert.Error(t, err)
}
