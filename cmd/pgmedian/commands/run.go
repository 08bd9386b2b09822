// Package commands implements CLI command handlers for pgmedian.
package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sveljko/pgmedian/internal/config"
	"github.com/sveljko/pgmedian/internal/observability"
	"github.com/sveljko/pgmedian/pkg/agg"
	"github.com/sveljko/pgmedian/pkg/ordbuf"
	"github.com/sveljko/pgmedian/pkg/stats"
)

// scanBufferSize caps a single input line at 1 MiB.
const scanBufferSize = 1 << 20

// metricsReadTimeout bounds slow /metrics scrape clients.
const metricsReadTimeout = 10 * time.Second

// ErrVerifyMismatch indicates the incremental median diverged from the
// full-sort reference - a bug, never an input problem.
var ErrVerifyMismatch = errors.New("incremental median does not match full-sort reference")

// RunCommand holds configuration and dependencies for the run command.
type RunCommand struct {
	configPath   string
	typeName     string
	collation    string
	window       int
	format       string
	running      bool
	verify       bool
	compress     bool
	snapshotPath string
	chartPath    string
	metricsAddr  string
	noColor      bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	rc := &RunCommand{}

	cmd := &cobra.Command{
		Use:   "run [file|-]",
		Short: "Stream values and compute the median",
		Long: `Read one value per line from a file or stdin and compute the median
incrementally. An empty line is a null input and is discarded. With --window
the median is maintained over a sliding window of the last N rows.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := "-"
			if len(args) == 1 {
				input = args[0]
			}

			cfg, err := config.LoadConfig(rc.configPath)
			if err != nil {
				return err
			}

			rc.applyFlagOverrides(cmd, cfg)

			return rc.execute(cfg, input, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&rc.configPath, "config", "", "path to config file")
	cmd.Flags().StringVarP(&rc.typeName, "type", "t", "bigint", "declared type of the input values")
	cmd.Flags().StringVar(&rc.collation, "collation", "", "collation for text values (BCP-47 tag; empty = byte order)")
	cmd.Flags().IntVarP(&rc.window, "window", "w", 0, "sliding window size (0 = whole stream)")
	cmd.Flags().StringVarP(&rc.format, "format", "f", config.FormatTable, "output format: table or yaml")
	cmd.Flags().BoolVar(&rc.running, "running", false, "print the median after every row")
	cmd.Flags().BoolVar(&rc.verify, "verify", false, "cross-check the result against a full sort")
	cmd.Flags().BoolVar(&rc.compress, "compress", false, "LZ4-compress the state snapshot")
	cmd.Flags().StringVar(&rc.snapshotPath, "snapshot", "", "write the final accumulator state to this file")
	cmd.Flags().StringVar(&rc.chartPath, "chart", "", "render the running median to this HTML file")
	cmd.Flags().StringVar(&rc.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&rc.noColor, "no-color", false, "disable colored output")

	return cmd
}

// applyFlagOverrides lets explicitly set flags win over the loaded config.
func (rc *RunCommand) applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("type") {
		cfg.Type = rc.typeName
	}

	if cmd.Flags().Changed("collation") {
		cfg.Collation = rc.collation
	}

	if cmd.Flags().Changed("window") {
		cfg.Window = rc.window
	}

	if cmd.Flags().Changed("format") {
		cfg.Format = rc.format
	}

	if cmd.Flags().Changed("running") {
		cfg.Running = rc.running
	}

	if cmd.Flags().Changed("verify") {
		cfg.Verify = rc.verify
	}

	if cmd.Flags().Changed("compress") {
		cfg.Compress = rc.compress
	}

	if cmd.Flags().Changed("snapshot") {
		cfg.SnapshotPath = rc.snapshotPath
	}

	if cmd.Flags().Changed("chart") {
		cfg.ChartPath = rc.chartPath
	}

	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = rc.metricsAddr
	}
}

// execute wires metrics, runs the stream, and renders the results.
func (rc *RunCommand) execute(cfg *config.Config, inputPath string, out io.Writer) error {
	if rc.noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	logger := slog.Default()

	provider, metricsHandler, err := observability.NewPrometheus()
	if err != nil {
		return err
	}

	sm, err := observability.NewStreamMetrics(provider.Meter("pgmedian"))
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:        cfg.MetricsAddr,
			Handler:     metricsHandler,
			ReadTimeout: metricsReadTimeout,
		}

		go func() {
			serveErr := srv.ListenAndServe()
			if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", cfg.MetricsAddr, "error", serveErr)
			}
		}()

		defer srv.Close()

		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	in, closeIn, err := openInput(inputPath)
	if err != nil {
		return err
	}
	defer closeIn()

	result, err := runStream(cfg, in, out, logger, sm)
	if err != nil {
		return err
	}

	if cfg.Verify {
		verifyErr := verifyResult(cfg, result)
		if verifyErr != nil {
			return verifyErr
		}

		logger.Info("full-sort cross-check passed", "rows", result.Rows)
	}

	if cfg.ChartPath != "" {
		chartErr := renderChart(result, cfg.ChartPath)
		if chartErr != nil {
			return chartErr
		}

		logger.Info("chart written", "path", cfg.ChartPath)
	}

	if cfg.SnapshotPath != "" {
		size, snapErr := writeSnapshot(result.state, cfg.SnapshotPath, cfg.Compress)
		if snapErr != nil {
			return snapErr
		}

		sm.RecordSnapshotSize(context.Background(), size)
		logger.Info("snapshot written",
			"path", cfg.SnapshotPath, "size", humanize.Bytes(uint64(size)))
	}

	return renderResult(cfg, result, out)
}

// openInput opens the input source; "-" means stdin.
func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}

	return file, func() { file.Close() }, nil
}

// streamResult summarizes one aggregation run.
type streamResult struct {
	Rows     int    `yaml:"rows"`
	Nulls    int    `yaml:"nulls"`
	Count    int    `yaml:"count"`
	Capacity int    `yaml:"capacity"`
	Growths  int    `yaml:"growths"`
	Class    string `yaml:"class"`
	Median   string `yaml:"median"`

	state  *agg.State
	median agg.Datum

	// Live rows backing the verify cross-check: the whole stream, or the
	// current window contents.
	live []agg.Datum

	// Running medians for the chart, numeral class only.
	chartLabels []string
	chartValues []float64
}

// runStream drives transfer/inverse-transfer over the input and finalizes
// the median.
func runStream(
	cfg *config.Config,
	in io.Reader,
	out io.Writer,
	logger *slog.Logger,
	sm *observability.StreamMetrics,
) (*streamResult, error) {
	aggCtx := agg.NewContext(cfg.Type, ordbuf.Collation(cfg.Collation))
	result := &streamResult{}
	ctx := context.Background()

	var (
		st  *agg.State
		win *agg.Window
	)

	if cfg.Window > 0 {
		w, err := agg.NewWindow(aggCtx, cfg.Window)
		if err != nil {
			return nil, err
		}

		win = w
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), scanBufferSize)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		result.Rows++

		d, err := parseRow(cfg.Type, line)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", result.Rows, err)
		}

		if d.IsNull() {
			result.Nulls++

			sm.RecordNull(ctx)
		}

		prevCap := capOf(stateOf(st, win))

		evicted, willEvict := agg.NullDatum(), false
		if win != nil && win.Len() == cfg.Window {
			evicted, willEvict = win.Oldest()
		}

		err = pushRow(aggCtx, &st, win, d)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", result.Rows, err)
		}

		if willEvict && !evicted.IsNull() {
			sm.RecordRemove(ctx, evicted.Value().Class().String())
		}

		if cfg.Verify {
			trackLive(result, win, d)
		}

		if !d.IsNull() {
			sm.RecordInsert(ctx, d.Value().Class().String())
		}

		if newCap := capOf(stateOf(st, win)); newCap > prevCap && prevCap > 0 {
			sm.RecordGrowth(ctx)
			logger.Debug("buffer grown", "capacity", newCap)
		}

		err = observeRow(cfg, aggCtx, stateOf(st, win), result, out, sm)
		if err != nil {
			return nil, err
		}
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	result.state = stateOf(st, win)

	med, err := agg.Finalize(aggCtx, result.state)
	if err != nil {
		return nil, err
	}

	sm.RecordMedianRead(ctx)

	result.median = med
	result.Median = med.String()
	result.Count = result.state.Len()

	if buf := bufferOf(result.state); buf != nil {
		result.Capacity = buf.Cap()
		result.Class = buf.Class().String()
		result.Growths = growthsFrom(buf.Cap())
	}

	return result, nil
}

// parseRow maps one input line to a datum; an empty line is null.
func parseRow(typeName, line string) (agg.Datum, error) {
	if line == "" {
		return agg.NullDatum(), nil
	}

	return agg.ParseDatum(typeName, line)
}

// pushRow advances either the sliding window or the whole-stream state.
func pushRow(aggCtx *agg.Context, st **agg.State, win *agg.Window, d agg.Datum) error {
	if win != nil {
		return win.Push(d)
	}

	next, err := agg.Transfer(aggCtx, *st, d)
	if err != nil {
		return err
	}

	*st = next

	return nil
}

// trackLive maintains the row set the verify cross-check recomputes from.
func trackLive(result *streamResult, win *agg.Window, d agg.Datum) {
	result.live = append(result.live, d)

	if win != nil && len(result.live) > win.Len() {
		// Window mode: only the rows still inside the window stay live.
		result.live = result.live[len(result.live)-win.Len():]
	}
}

// observeRow records the running median after each row, for --running
// output and the chart.
func observeRow(
	cfg *config.Config,
	aggCtx *agg.Context,
	st *agg.State,
	result *streamResult,
	out io.Writer,
	sm *observability.StreamMetrics,
) error {
	if !cfg.Running && cfg.ChartPath == "" {
		return nil
	}

	med, err := agg.Finalize(aggCtx, st)
	if err != nil {
		return err
	}

	sm.RecordMedianRead(context.Background())

	if cfg.Running {
		fmt.Fprintf(out, "row %d: median %s\n", result.Rows, med.String())
	}

	if cfg.ChartPath != "" && !med.IsNull() && med.Value().Class() == ordbuf.ClassNumeral {
		result.chartLabels = append(result.chartLabels, fmt.Sprintf("%d", result.Rows))
		result.chartValues = append(result.chartValues, float64(med.Value().Int64()))
	}

	return nil
}

// stateOf returns the authoritative state handle for either mode.
func stateOf(st *agg.State, win *agg.Window) *agg.State {
	if win != nil {
		return win.State()
	}

	return st
}

func bufferOf(st *agg.State) *ordbuf.Buffer {
	if st == nil {
		return nil
	}

	return st.Buffer()
}

func capOf(st *agg.State) int {
	buf := bufferOf(st)
	if buf == nil {
		return 0
	}

	return buf.Cap()
}

// growthsFrom derives how many 3/2 growth steps led to the given capacity.
func growthsFrom(capacity int) int {
	growths := 0

	for c := 64; c < capacity; c = c * 3 / 2 {
		growths++
	}

	return growths
}

// verifyResult recomputes the median with a full sort over the live rows and
// compares.
func verifyResult(cfg *config.Config, result *streamResult) error {
	class, err := agg.ClassOf(cfg.Type)
	if err != nil {
		return err
	}

	switch class {
	case ordbuf.ClassNumeral:
		values := make([]int64, 0, len(result.live))

		for _, d := range result.live {
			if !d.IsNull() {
				values = append(values, d.Value().Int64())
			}
		}

		want, ok := stats.UpperMedian(values)
		if !ok {
			if result.median.IsNull() {
				return nil
			}

			return fmt.Errorf("%w: reference has no median, got %s", ErrVerifyMismatch, result.Median)
		}

		if result.median.IsNull() || result.median.Value().Int64() != want {
			return fmt.Errorf("%w: want %d, got %s", ErrVerifyMismatch, want, result.Median)
		}
	case ordbuf.ClassText:
		coll := ordbuf.Collation(cfg.Collation)
		values := make([]ordbuf.Value, 0, len(result.live))

		for _, d := range result.live {
			if !d.IsNull() {
				values = append(values, d.Value())
			}
		}

		if len(values) == 0 {
			if result.median.IsNull() {
				return nil
			}

			return fmt.Errorf("%w: reference has no median, got %s", ErrVerifyMismatch, result.Median)
		}

		// The reference sort must honor the same collation the buffer used.
		slices.SortStableFunc(values, func(a, b ordbuf.Value) int {
			return ordbuf.Compare(a, b, coll)
		})

		want := values[len(values)/2]
		if result.median.IsNull() || ordbuf.Compare(result.median.Value(), want, coll) != 0 {
			return fmt.Errorf("%w: want %s, got %s", ErrVerifyMismatch, want, result.Median)
		}
	default:
		return fmt.Errorf("%w: %q", agg.ErrUnsupportedType, cfg.Type)
	}

	return nil
}

// writeSnapshot persists the final accumulator state and returns its size.
func writeSnapshot(st *agg.State, path string, compress bool) (int64, error) {
	buf := bufferOf(st)
	if buf == nil {
		buf = ordbuf.New()
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create snapshot: %w", err)
	}
	defer file.Close()

	err = buf.Snapshot(file, compress)
	if err != nil {
		return 0, err
	}

	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat snapshot: %w", err)
	}

	return info.Size(), nil
}

// renderResult writes the run summary in the configured format.
func renderResult(cfg *config.Config, result *streamResult, out io.Writer) error {
	if cfg.Format == config.FormatYAML {
		encoded, err := yaml.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}

		_, err = out.Write(encoded)

		return err
	}

	median := result.Median
	if !result.median.IsNull() {
		median = color.New(color.FgGreen).Sprint(median)
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"field", "value"})
	tbl.AppendRow(table.Row{"rows", result.Rows})
	tbl.AppendRow(table.Row{"nulls", result.Nulls})
	tbl.AppendRow(table.Row{"count", result.Count})
	tbl.AppendRow(table.Row{"class", result.Class})
	tbl.AppendRow(table.Row{"capacity", result.Capacity})
	tbl.AppendRow(table.Row{"growths", result.Growths})
	tbl.AppendRow(table.Row{"median", median})

	fmt.Fprintln(out, tbl.Render())

	return nil
}
