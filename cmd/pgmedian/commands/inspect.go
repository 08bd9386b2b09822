package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sveljko/pgmedian/internal/config"
	"github.com/sveljko/pgmedian/pkg/ordbuf"
)

// InspectCommand holds configuration for the inspect command.
type InspectCommand struct {
	format  string
	noColor bool
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	ic := &InspectCommand{}

	cmd := &cobra.Command{
		Use:   "inspect <snapshot>",
		Short: "Decode and describe a state snapshot",
		Long: `Decode an accumulator snapshot written by "run --snapshot" and print
its contents: element class, count, capacity, and the median it encodes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ic.execute(args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&ic.format, "format", "f", config.FormatTable, "output format: table or yaml")
	cmd.Flags().BoolVar(&ic.noColor, "no-color", false, "disable colored output")

	return cmd
}

// snapshotReport describes a decoded snapshot.
type snapshotReport struct {
	File     string `yaml:"file"`
	Size     string `yaml:"size"`
	Class    string `yaml:"class"`
	Count    int    `yaml:"count"`
	Capacity int    `yaml:"capacity"`
	Median   string `yaml:"median"`
}

func (ic *InspectCommand) execute(path string, out io.Writer) error {
	if ic.noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}

	buf, err := ordbuf.ReadSnapshot(file)
	if err != nil {
		return err
	}

	report := snapshotReport{
		File:     path,
		Size:     humanize.Bytes(uint64(info.Size())),
		Class:    buf.Class().String(),
		Count:    buf.Len(),
		Capacity: buf.Cap(),
		Median:   "NULL",
	}

	median, ok := buf.Median()
	if ok {
		switch median.Class() {
		case ordbuf.ClassNumeral:
			report.Median = fmt.Sprintf("%d", median.Int64())
		case ordbuf.ClassText:
			report.Median = median.Text()
		}
	}

	if ic.format == config.FormatYAML {
		encoded, yamlErr := yaml.Marshal(report)
		if yamlErr != nil {
			return fmt.Errorf("encode report: %w", yamlErr)
		}

		_, err = out.Write(encoded)

		return err
	}

	medianCell := report.Median
	if ok {
		medianCell = color.New(color.FgGreen).Sprint(medianCell)
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"field", "value"})
	tbl.AppendRow(table.Row{"file", report.File})
	tbl.AppendRow(table.Row{"size", report.Size})
	tbl.AppendRow(table.Row{"class", report.Class})
	tbl.AppendRow(table.Row{"count", report.Count})
	tbl.AppendRow(table.Row{"capacity", report.Capacity})
	tbl.AppendRow(table.Row{"median", medianCell})

	fmt.Fprintln(out, tbl.Render())

	return nil
}
