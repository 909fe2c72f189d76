package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/coltable/internal/csvimport"
	"github.com/ajitpratap0/coltable/pkg/config"
	"github.com/ajitpratap0/coltable/pkg/data"
	"github.com/ajitpratap0/coltable/pkg/errors"
	"github.com/ajitpratap0/coltable/pkg/json"
	"github.com/ajitpratap0/coltable/pkg/logger"
	"github.com/ajitpratap0/coltable/pkg/observability"
	"github.com/ajitpratap0/coltable/pkg/table"
)

// app holds the state shared by all commands of one invocation.
type app struct {
	v   *viper.Viper
	cfg *config.Config
	log *zap.Logger

	shutdownTracing observability.ShutdownFunc
	metricsSrv      *http.Server
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if path := a.v.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if s := a.v.GetString("log-level"); s != "" {
		cfg.Logging.Level = s
	}
	if s := a.v.GetString("store-format"); s != "" {
		cfg.Store.Format = s
	}
	if s := a.v.GetString("compression"); s != "" {
		cfg.Store.Compression = s
	}
	if n := a.v.GetInt("batch-size"); n > 0 {
		cfg.Store.BatchSize = n
	}
	if a.v.IsSet("mmap") {
		cfg.Store.UseMmap = a.v.GetBool("mmap")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize logger")
	}
	a.cfg = cfg
	a.log = logger.Named("cli").With(zap.String("command", cmd.Name()))

	shutdown, err := observability.InitTracing(cfg.Tracing)
	if err != nil {
		return err
	}
	a.shutdownTracing = shutdown

	if cfg.Metrics.Enabled {
		a.serveMetrics(cfg.Metrics.Address)
	}
	return nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metricsSrv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Warn("metrics server stopped", zap.String("address", addr), zap.Error(err))
		}
	}()
	a.log.Info("serving metrics", zap.String("address", addr))
}

func (a *app) teardown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var firstErr error
	if a.metricsSrv != nil {
		firstErr = a.metricsSrv.Shutdown(ctx)
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	_ = logger.Sync()
	return firstErr
}

func (a *app) version(cmd *cobra.Command, _ []string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "coltable v%s\n", version)
	fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func (a *app) importCSV(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	src, dir := args[0], args[1]
	flags := cmd.Flags()

	name, _ := flags.GetString("name")
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	}
	opts := csvimport.Options{Name: name, Logger: a.log}
	opts.RowKeyColumn, _ = flags.GetString("row-key-column")
	opts.SampleSize, _ = flags.GetInt("sample-size")

	if schema, _ := flags.GetString("schema"); schema != "" {
		spec, err := csvimport.ParseSchema(name, schema)
		if err != nil {
			return err
		}
		opts.Spec = spec
	}
	delimiter, _ := flags.GetString("delimiter")
	if utf8.RuneCountInString(delimiter) != 1 {
		return errors.Newf(errors.ErrorTypeValidation, "delimiter must be a single character, got %q", delimiter)
	}
	opts.Comma, _ = utf8.DecodeRuneInString(delimiter)

	factory, err := a.cfg.Store.Factory(a.log)
	if err != nil {
		return err
	}
	opts.Container = table.ContainerOptions{Factory: factory, Logger: a.log}

	f, err := os.Open(src) //nolint:gosec // G304: user-supplied input file
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to open CSV file").WithDetail("path", src)
	}
	defer f.Close()

	start := time.Now()
	tbl, err := csvimport.Import(ctx, f, opts)
	if err != nil {
		return err
	}
	defer tbl.Clear()

	if err := table.SaveTable(ctx, tbl, dir); err != nil {
		return err
	}
	size, err := tbl.Size(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows into %s (%s, %s)\n",
		size, dir, factory.ID(), time.Since(start).Round(time.Millisecond))
	return nil
}

func (a *app) load(dir string) (*table.LazyTable, error) {
	factories, err := a.cfg.Store.Factories(a.log)
	if err != nil {
		return nil, err
	}
	return table.LoadTable(dir, table.LoadOptions{Factories: factories, Logger: a.log})
}

func (a *app) cat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	tbl, err := a.load(args[0])
	if err != nil {
		return err
	}
	defer tbl.Clear()

	filter := table.AllColumns()
	if cols, _ := flags.GetStringSlice("columns"); len(cols) > 0 {
		if filter, err = table.ColumnsByName(tbl.Spec(), cols...); err != nil {
			return err
		}
	}
	from, _ := flags.GetInt64("from")
	to, _ := flags.GetInt64("to")
	if from != 0 || to >= 0 {
		if to < 0 {
			to = math.MaxInt64
		}
		filter = filter.WithRowRange(from, to)
	}

	it, err := tbl.IteratorWithFilter(ctx, filter)
	if err != nil {
		return err
	}

	format, _ := flags.GetString("format")
	switch format {
	case "text":
		return writeText(cmd.OutOrStdout(), tbl, filter, it)
	case "json", "jsonl":
		return writeJSON(cmd.OutOrStdout(), tbl, filter, it, format == "json")
	default:
		it.Close()
		return errors.Newf(errors.ErrorTypeValidation, "unknown format %q", format)
	}
}

func selectedColumns(spec *data.TableSpec, f table.Filter) []int {
	var cols []int
	for i := 0; i < spec.NumColumns(); i++ {
		if f.Materializes(i) {
			cols = append(cols, i)
		}
	}
	return cols
}

func writeText(w io.Writer, tbl table.Table, f table.Filter, it table.RowIterator) error {
	spec := tbl.Spec()
	cols := selectedColumns(spec, f)

	var header []string
	if tbl.HasRowKeys() {
		header = append(header, "key")
	}
	for _, c := range cols {
		header = append(header, spec.Column(c).Name)
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	return table.ForEach(it, func(row data.Row) error {
		fields := make([]string, 0, len(header))
		if tbl.HasRowKeys() {
			key, err := row.Key()
			if err != nil {
				return err
			}
			fields = append(fields, key)
		}
		for _, c := range cols {
			fields = append(fields, row.Cell(c).String())
		}
		_, err := fmt.Fprintln(w, strings.Join(fields, "\t"))
		return err
	})
}

func writeJSON(w io.Writer, tbl table.Table, f table.Filter, it table.RowIterator, array bool) error {
	spec := tbl.Spec()
	cols := selectedColumns(spec, f)
	enc := json.NewStreamingEncoder(w, array)

	err := table.ForEach(it, func(row data.Row) error {
		obj := make(map[string]interface{}, len(cols)+1)
		if tbl.HasRowKeys() {
			key, err := row.Key()
			if err != nil {
				return err
			}
			obj["_key"] = key
		}
		for _, c := range cols {
			obj[spec.Column(c).Name] = cellValue(row.Cell(c))
		}
		return enc.Encode(obj)
	})
	if cerr := enc.Close(); err == nil {
		err = cerr
	}
	return err
}

// cellValue converts a cell to its JSON value; missing becomes null. JSON has
// no NaN or infinity, so those doubles are written as their text form.
func cellValue(c data.Cell) interface{} {
	switch v := c.(type) {
	case data.StringCell:
		return string(v)
	case data.IntCell:
		return int32(v)
	case data.LongCell:
		return int64(v)
	case data.DoubleCell:
		if f := float64(v); !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
		return v.String()
	case data.BooleanCell:
		return bool(v)
	case data.TimestampCell, data.BinaryCell:
		return v.String()
	default:
		return nil
	}
}

// tableInfo is the output of the info command.
type tableInfo struct {
	Path string `json:"path"`
	table.Descriptor
	Size int64 `json:"size"`
}

func (a *app) info(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir := args[0]

	desc, err := table.ReadDescriptor(dir)
	if err != nil {
		return err
	}
	tbl, err := a.load(dir)
	if err != nil {
		return err
	}
	defer tbl.Clear()
	size, err := tbl.Size(ctx)
	if err != nil {
		return err
	}

	raw, err := json.MarshalIndent(tableInfo{Path: dir, Descriptor: *desc, Size: size}, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode table info")
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
	return err
}
