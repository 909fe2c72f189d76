package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// run executes one command line. Tracing and the metrics server are shut
// down afterwards, also when the command fails.
func run(ctx context.Context, args []string, out io.Writer) error {
	root, a := newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	err := root.ExecuteContext(ctx)
	if terr := a.teardown(ctx); err == nil {
		err = terr
	}
	return err
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{v: viper.New()}
	a.v.SetEnvPrefix("COLTABLE")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "coltable",
		Short: "coltable - columnar table storage",
		Long: `coltable stores row-oriented tables in Arrow columnar files.
It imports CSV into saved tables and reads them back with column projection.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Path to a YAML configuration file")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("store-format", "", "Store format for new tables (file, stream)")
	pf.String("compression", "", "Stream codec (none, gzip, snappy, s2, lz4, zstd)")
	pf.Int("batch-size", 0, "Rows per record batch")
	pf.Bool("mmap", false, "Read saved IPC files through a memory mapping")
	for _, name := range []string{"config", "log-level", "store-format", "compression", "batch-size", "mmap"} {
		_ = a.v.BindPFlag(name, pf.Lookup(name))
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run:   a.version,
	})

	cmd := &cobra.Command{
		Use:   "import <csv-file> <table-dir>",
		Short: "Import a CSV file into a saved table",
		Long: `Import a CSV file with a header record into a table saved under table-dir.
Column types are inferred from the leading records unless --schema is given.

Example:
  coltable import scores.csv ./scores --row-key-column id --schema class:string,score:double`,
		Args: cobra.ExactArgs(2),
		RunE: a.importCSV,
	}
	cmd.Flags().String("name", "", "Table name (default: the CSV file name)")
	cmd.Flags().String("schema", "", "Column types as name:type,... instead of inference")
	cmd.Flags().String("row-key-column", "", "CSV column stored as the row key")
	cmd.Flags().String("delimiter", ",", "Field delimiter")
	cmd.Flags().Int("sample-size", 0, "Records sampled for type inference")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "cat <table-dir>",
		Short: "Print the rows of a saved table",
		Args:  cobra.ExactArgs(1),
		RunE:  a.cat,
	}
	cmd.Flags().StringSlice("columns", nil, "Columns to read (default: all)")
	cmd.Flags().Int64("from", 0, "First row to print, zero-based")
	cmd.Flags().Int64("to", -1, "Last row to print, inclusive (default: the last row)")
	cmd.Flags().String("format", "text", "Output format (text, json, jsonl)")
	root.AddCommand(cmd)

	root.AddCommand(&cobra.Command{
		Use:   "info <table-dir>",
		Short: "Show the descriptor and size of a saved table",
		Args:  cobra.ExactArgs(1),
		RunE:  a.info,
	})

	return root, a
}
