// Command materialtracker is the operator CLI over the persisted material
// request collection: list, filter, export and print, plus request entry.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"materialtracker/internal/adapters/export"
	"materialtracker/internal/adapters/printing"
	"materialtracker/internal/config"
	"materialtracker/internal/core"
	"materialtracker/internal/logging"
	"materialtracker/internal/query"
	"materialtracker/pkg/domain"
)

var exitFunc = os.Exit

const usage = `usage: materialtracker <command> [flags]

commands:
  list     show request rows (-project, -status, -search, -json)
  export   write xlsx/csv/json (-format, -out, -publish), or -list published exports
  print    render the HTML summary, or one request with -id
  add      create a request (-date, -project, -warehouse, -notes, -item material,unit,qty ...)
  deliver  record a delivery (-id, -item, -date, -qty)
  remove   delete a request (-id)
`

func main() {
	exitFunc(cli(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type app struct {
	cfg    *config.Config
	log    *logging.Logger
	svc    *core.Service
	stdout io.Writer
	stderr io.Writer
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()
	reg := prometheus.NewRegistry()
	metrics, err := core.NewMetricsRecorder(cfg.Metrics, reg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "metrics: %v\n", err)
		return 1
	}
	qtyPolicy, err := core.ParseQtyParsePolicy(cfg.Delivery.QtyPolicy)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	opts := []core.Option{
		core.WithLogger(log.Named("core")),
		core.WithMetricsRecorder(metrics),
		core.WithQtyParsePolicy(qtyPolicy),
	}
	if cfg.Trace {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(stderr)))
	}
	store, closeStore, err := core.OpenPersistentStore(ctx, cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		log.Error("open store failed", "driver", cfg.Storage.Driver, "error", err)
		_, _ = fmt.Fprintf(stderr, "open store: %v\n", err)
		return 1
	}
	defer func() { _ = closeStore() }()

	a := &app{
		cfg:    cfg,
		log:    log,
		svc:    core.NewService(store, opts...),
		stdout: stdout,
		stderr: stderr,
	}
	code := a.dispatch(ctx, args[0], args[1:])
	if cfg.MetricsTextfile != "" {
		if err := core.WriteMetricsFile(cfg.MetricsTextfile, metrics, reg); err != nil {
			log.Error("metrics dump failed", "path", cfg.MetricsTextfile, "error", err)
			_, _ = fmt.Fprintf(stderr, "metrics: %v\n", err)
			if code == 0 {
				code = 1
			}
		}
	}
	return code
}

func (a *app) dispatch(ctx context.Context, cmd string, rest []string) int {
	var err error
	switch cmd {
	case "list":
		err = a.list(rest)
	case "export":
		err = a.export(ctx, rest)
	case "print":
		err = a.print(rest)
	case "add":
		err = a.add(ctx, rest)
	case "deliver":
		err = a.deliver(ctx, rest)
	case "remove":
		err = a.remove(ctx, rest)
	default:
		_, _ = fmt.Fprintf(a.stderr, "unknown command %q\n%s", cmd, usage)
		return 2
	}
	var uerr usageError
	if errors.As(err, &uerr) {
		return 2
	}
	if err != nil {
		_, _ = fmt.Fprintf(a.stderr, "%s: %v\n", cmd, err)
		return 1
	}
	return 0
}

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// usageError marks a flag parse failure; the flag package has already
// printed the message.
type usageError struct{ error }

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}
	return nil
}

func filterFlags(fs *flag.FlagSet) *query.Filters {
	f := &query.Filters{}
	fs.StringVar(&f.Project, "project", "", "exact project title")
	fs.StringVar(&f.Status, "status", "", "status text, e.g. \"Partially Supplied\"")
	fs.StringVar(&f.Search, "search", "", "material, project or request id substring")
	return f
}

func (a *app) list(args []string) error {
	fs := a.flagSet("list")
	filters := filterFlags(fs)
	asJSON := fs.Bool("json", false, "emit rows as JSON")
	if err := parse(fs, args); err != nil {
		return err
	}
	if filters.Status != "" {
		if _, ok := domain.ParseStatus(filters.Status); !ok {
			return fmt.Errorf("unknown status %q (want one of %s)", filters.Status, strings.Join(a.svc.Statuses(), ", "))
		}
	}
	rows := a.svc.Rows(*filters)
	if *asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(query.SummaryColumns, "\t"))
	for _, r := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(r.SummaryRecord(), "\t"))
	}
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(tw, "No requests found.")
	}
	return tw.Flush()
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := a.flagSet("export")
	filters := filterFlags(fs)
	formatName := fs.String("format", "xlsx", "xlsx, csv or json")
	out := fs.String("out", a.cfg.Export.Dir, "output directory")
	publish := fs.Bool("publish", false, "store the export in the configured blob store instead of -out")
	listOnly := fs.Bool("list", false, "list exports already published to the blob store")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *listOnly {
		return a.listPublished(ctx)
	}
	format, err := export.ParseFormat(*formatName)
	if err != nil {
		return err
	}
	rows := a.svc.Rows(*filters)
	if *publish {
		store, err := core.OpenBlobStore(ctx, a.cfg.Storage.Blob)
		if err != nil {
			return err
		}
		art, err := export.Publish(ctx, store, format, rows)
		if err != nil {
			return err
		}
		a.log.Info("export published", "key", art.Key, "rows", art.Rows)
		_, _ = fmt.Fprintln(a.stdout, art.Key)
		if art.URL != "" {
			_, _ = fmt.Fprintln(a.stdout, art.URL)
		}
		return nil
	}
	path, err := export.WriteFile(*out, format, rows)
	if err != nil {
		return err
	}
	a.log.Info("export written", "path", path, "rows", len(rows))
	_, _ = fmt.Fprintln(a.stdout, path)
	return nil
}

func (a *app) listPublished(ctx context.Context) error {
	store, err := core.OpenBlobStore(ctx, a.cfg.Storage.Blob)
	if err != nil {
		return err
	}
	infos, err := export.ListPublished(ctx, store)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, info := range infos {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", info.Key, info.Size, info.Metadata["rows"], info.LastModified.Format(time.RFC3339))
	}
	return tw.Flush()
}

func (a *app) print(args []string) error {
	fs := a.flagSet("print")
	filters := filterFlags(fs)
	id := fs.String("id", "", "print a single request")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *id == "" {
		return printing.RenderSummary(a.stdout, a.svc.Rows(*filters))
	}
	req, ok := a.svc.Request(*id)
	if !ok {
		return core.ErrNotFound{Entity: domain.EntityRequest, ID: *id}
	}
	return printing.RenderRequest(a.stdout, req)
}

type itemList []string

func (l *itemList) String() string     { return strings.Join(*l, ";") }
func (l *itemList) Set(v string) error { *l = append(*l, v); return nil }

func (a *app) add(ctx context.Context, args []string) error {
	fs := a.flagSet("add")
	d := core.NewDraft()
	var items itemList
	fs.StringVar(&d.Date, "date", "", "request date")
	fs.StringVar(&d.ProjectTitle, "project", "", "project title")
	fs.StringVar(&d.Warehouse, "warehouse", "", "warehouse")
	fs.StringVar(&d.Notes, "notes", "", "free-text notes")
	fs.Var(&items, "item", "line item as material,unit,qty (repeatable)")
	if err := parse(fs, args); err != nil {
		return err
	}
	for _, raw := range items {
		parts := strings.Split(raw, ",")
		if len(parts) != 3 {
			return fmt.Errorf("item %q: want material,unit,qty", raw)
		}
		if err := d.AddItem(parts[0], parts[1], parts[2]); err != nil {
			return err
		}
	}
	req, res, err := a.svc.Submit(ctx, d)
	if err != nil {
		return err
	}
	if err := a.report(res); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.stdout, req.ID)
	return nil
}

func (a *app) deliver(ctx context.Context, args []string) error {
	fs := a.flagSet("deliver")
	var key core.SupplyKey
	var in core.DeliveryInput
	fs.StringVar(&key.RequestID, "id", "", "request id")
	fs.IntVar(&key.ItemIndex, "item", 0, "line item index (0-based)")
	fs.StringVar(&in.Date, "date", "", "delivery date")
	fs.StringVar(&in.Qty, "qty", "", "delivered quantity")
	if err := parse(fs, args); err != nil {
		return err
	}
	req, res, err := a.svc.AddDelivery(ctx, key, in)
	if err != nil {
		return err
	}
	if err := a.report(res); err != nil {
		return err
	}
	item, _ := req.Item(key.ItemIndex)
	_, _ = fmt.Fprintf(a.stdout, "%s\t%s\t%d/%d\t%s\n", req.ID, item.Material, item.SuppliedTotal(), item.RequestedQty, item.Status().Text())
	return nil
}

func (a *app) remove(ctx context.Context, args []string) error {
	fs := a.flagSet("remove")
	id := fs.String("id", "", "request id")
	if err := parse(fs, args); err != nil {
		return err
	}
	res, err := a.svc.Remove(ctx, *id)
	if err != nil {
		return err
	}
	if err := a.report(res); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.stdout, "removed", *id)
	return nil
}

// report prints rule warnings and fails when the change never reached the
// store, since the process exits with it.
func (a *app) report(res core.Result) error {
	for _, w := range res.Warnings() {
		_, _ = fmt.Fprintf(a.stderr, "warning: %s\n", w.Message)
	}
	if !res.Persisted() {
		return fmt.Errorf("changes were not saved: %w", res.Unsaved)
	}
	return nil
}

