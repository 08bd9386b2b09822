package commands

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"gopkg.in/yaml.v3"

	"github.com/sveljko/pgmedian/internal/config"
	"github.com/sveljko/pgmedian/internal/observability"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Type:   "bigint",
		Format: config.FormatTable,
	}
}

func testStreamMetrics(t *testing.T) *observability.StreamMetrics {
	t.Helper()

	sm, err := observability.NewStreamMetrics(noopmetric.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	return sm
}

func runOver(t *testing.T, cfg *config.Config, input string) (*streamResult, string) {
	t.Helper()

	var out bytes.Buffer

	result, err := runStream(cfg, strings.NewReader(input), &out,
		slog.New(slog.NewTextHandler(io.Discard, nil)), testStreamMetrics(t))
	require.NoError(t, err)

	return result, out.String()
}

func TestRunStream_OddCountMedian(t *testing.T) {
	t.Parallel()

	result, _ := runOver(t, testConfig(t), "5\n1\n4\n2\n3\n")

	assert.Equal(t, 5, result.Rows)
	assert.Equal(t, 5, result.Count)
	assert.Equal(t, "3", result.Median)
}

func TestRunStream_EvenCountUpperMiddle(t *testing.T) {
	t.Parallel()

	result, _ := runOver(t, testConfig(t), "4\n1\n3\n2\n")

	assert.Equal(t, "3", result.Median)
}

func TestRunStream_EmptyLinesAreNulls(t *testing.T) {
	t.Parallel()

	result, _ := runOver(t, testConfig(t), "10\n\n20\n\n30\n")

	assert.Equal(t, 5, result.Rows)
	assert.Equal(t, 2, result.Nulls)
	assert.Equal(t, 3, result.Count)
	assert.Equal(t, "20", result.Median)
}

func TestRunStream_EmptyInputYieldsNullMedian(t *testing.T) {
	t.Parallel()

	result, _ := runOver(t, testConfig(t), "")

	assert.Equal(t, 0, result.Rows)
	assert.Equal(t, "NULL", result.Median)
}

func TestRunStream_WindowSlidesMedian(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Window = 3
	cfg.Running = true

	result, out := runOver(t, cfg, "1\n2\n3\n4\n5\n")

	// Last full window is [3 4 5].
	assert.Equal(t, "4", result.Median)
	assert.Contains(t, out, "row 3: median 2")
	assert.Contains(t, out, "row 4: median 3")
	assert.Contains(t, out, "row 5: median 4")
}

func TestRunStream_CollationChangesTextMedian(t *testing.T) {
	t.Parallel()

	input := "Zebra\napple\nmango\n"

	byteOrder := testConfig(t)
	byteOrder.Type = "text"

	result, _ := runOver(t, byteOrder, input)
	assert.Equal(t, `"apple"`, result.Median, "byte order sorts uppercase first")

	collated := testConfig(t)
	collated.Type = "text"
	collated.Collation = "en"

	result, _ = runOver(t, collated, input)
	assert.Equal(t, `"mango"`, result.Median, "en collation orders letters before case")
}

func TestRunStream_BadRowReportsLineNumber(t *testing.T) {
	t.Parallel()

	_, err := runStream(testConfig(t), strings.NewReader("1\ntwo\n3\n"), io.Discard,
		slog.New(slog.NewTextHandler(io.Discard, nil)), testStreamMetrics(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestVerifyResult(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Verify = true

	result, _ := runOver(t, cfg, "9\n7\n8\n")
	require.NoError(t, verifyResult(cfg, result))

	// Tamper with the live rows so the reference disagrees.
	result.live = result.live[:2]

	err := verifyResult(cfg, result)
	require.ErrorIs(t, err, ErrVerifyMismatch)
}

func TestVerifyResult_CollatedText(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Type = "text"
	cfg.Collation = "en"
	cfg.Verify = true

	result, _ := runOver(t, cfg, "Zebra\napple\nmango\n")
	require.NoError(t, verifyResult(cfg, result))
}

func TestGrowthsFrom(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, growthsFrom(0))
	assert.Equal(t, 0, growthsFrom(64))
	assert.Equal(t, 1, growthsFrom(96))
	assert.Equal(t, 2, growthsFrom(144))
}

func TestRenderChart(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "median.html")

	err := renderChart(&streamResult{}, path)
	require.ErrorIs(t, err, ErrNoChartData)

	result := &streamResult{
		chartLabels: []string{"1", "2", "3"},
		chartValues: []float64{1, 2, 2},
	}

	require.NoError(t, renderChart(result, path))

	rendered, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(rendered), "echarts")
}

func TestRunCommand_EndToEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "values.txt")
	require.NoError(t, os.WriteFile(input, []byte("6\n2\n4\n"), 0o600))

	var out bytes.Buffer

	cmd := NewRunCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{input, "--format", "yaml", "--verify"})

	require.NoError(t, cmd.Execute())

	var report struct {
		Rows   int    `yaml:"rows"`
		Count  int    `yaml:"count"`
		Median string `yaml:"median"`
	}

	require.NoError(t, yaml.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 3, report.Rows)
	assert.Equal(t, 3, report.Count)
	assert.Equal(t, "4", report.Median)
}

func TestRunCommand_SnapshotInspectRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "values.txt")
	snapshot := filepath.Join(dir, "state.bin")
	require.NoError(t, os.WriteFile(input, []byte("30\n10\n20\n"), 0o600))

	runCmd := NewRunCommand()
	runCmd.SetOut(io.Discard)
	runCmd.SetArgs([]string{input, "--snapshot", snapshot, "--compress"})
	require.NoError(t, runCmd.Execute())

	var out bytes.Buffer

	inspectCmd := NewInspectCommand()
	inspectCmd.SetOut(&out)
	inspectCmd.SetArgs([]string{snapshot, "--format", "yaml"})
	require.NoError(t, inspectCmd.Execute())

	var report snapshotReport

	require.NoError(t, yaml.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "numeral", report.Class)
	assert.Equal(t, 3, report.Count)
	assert.Equal(t, "20", report.Median)
}

func TestInspectCommand_MissingFile(t *testing.T) {
	t.Parallel()

	cmd := NewInspectCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "absent.bin")})

	require.Error(t, cmd.Execute())
}
