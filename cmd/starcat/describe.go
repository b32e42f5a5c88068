package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/starcat/catalog"
	"github.com/signalsfoundry/starcat/internal/tableio"
)

var describeCmd = &cobra.Command{
	Use:   "describe <file> [column...]",
	Short: "Print column metadata (unit, datatype, ucd, description)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDescribe,
}

func init() {
	describeCmd.Flags().String("format", "table", "output format: table or yaml")
	describeCmd.Flags().String("input-format", "", "input format: csv or parquet (default from extension)")

	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	overrides, err := cfg.UnitOverrides()
	if err != nil {
		return err
	}
	inputFormat, _ := cmd.Flags().GetString("input-format")
	cat, err := tableio.Load(args[0], tableio.Options{Format: inputFormat, Units: overrides})
	if err != nil {
		return fmt.Errorf("load %s: %w", args[0], err)
	}

	infos, err := cat.Metadata(args[1:]...)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "yaml":
		return renderYAML(cmd.OutOrStdout(), infos)
	case "table", "":
		renderTable(cmd.OutOrStdout(), infos)
		return nil
	default:
		return fmt.Errorf("describe: unknown format %q, want table or yaml", format)
	}
}

func renderTable(w io.Writer, infos []catalog.ColumnInfo) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"name", "unit", "datatype", "width", "precision", "arraysize", "ucd", "description"})
	for _, c := range infos {
		t.AppendRow(table.Row{c.Name, c.Unit, c.DataType, c.Width, c.Precision, c.ArraySize, c.UCD, c.Description})
	}
	t.Render()
}

func renderYAML(w io.Writer, infos []catalog.ColumnInfo) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"columns": infos}); err != nil {
		return fmt.Errorf("describe: encode yaml: %w", err)
	}
	return enc.Close()
}
