package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/worshipwaves/WDweb-sub002/internal/cli/output"
	"github.com/worshipwaves/WDweb-sub002/internal/logger"
	"github.com/worshipwaves/WDweb-sub002/pkg/config"
	"github.com/worshipwaves/WDweb-sub002/pkg/prefetch"
	"github.com/worshipwaves/WDweb-sub002/pkg/runtime"
)

var prefetchSkip int

var prefetchCmd = &cobra.Command{
	Use:   "prefetch",
	Short: "Warm the cache once and exit",
	Long: `Run the prefetch engine without the API until every catalog item has
been processed, then print a summary.

A missing config file is allowed; the defaults are used.

Examples:
  assetd prefetch --config ./assetd.yaml
  assetd prefetch --skip 10 -o json`,
	RunE: runPrefetch,
}

func init() {
	prefetchCmd.Flags().IntVar(&prefetchSkip, "skip", -1, "Treat the first N items as loaded (default: catalog.skip)")
}

// PrefetchResult summarizes a one-shot prefetch run.
type PrefetchResult struct {
	Total   int `json:"total" yaml:"total"`
	Loaded  int `json:"loaded" yaml:"loaded"`
	Ready   int `json:"ready" yaml:"ready"`
	Failed  int `json:"failed" yaml:"failed"`
	Pending int `json:"pending" yaml:"pending"`
}

func (r PrefetchResult) Headers() []string {
	return []string{"TOTAL", "LOADED", "READY", "FAILED", "PENDING"}
}

func (r PrefetchResult) Rows() [][]string {
	return [][]string{{
		fmt.Sprint(r.Total), fmt.Sprint(r.Loaded), fmt.Sprint(r.Ready),
		fmt.Sprint(r.Failed), fmt.Sprint(r.Pending),
	}}
}

func runPrefetch(cmd *cobra.Command, args []string) error {
	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if prefetchSkip >= 0 {
		cfg.Catalog.Skip = prefetchSkip
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := initObservability(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize runtime: %w", err)
	}
	defer func() { _ = rt.Close() }()

	status, err := runUntilDrained(ctx, rt, cmd.ErrOrStderr(), printer.Format() == output.FormatTable)
	if err != nil {
		return err
	}

	stats := rt.Cache().Stats()
	return printer.Print(PrefetchResult{
		Total:   status.Total,
		Loaded:  status.Loaded,
		Ready:   stats.Ready,
		Failed:  stats.Failed,
		Pending: stats.Loading,
	})
}

// runUntilDrained starts rt and blocks until the backlog is empty or ctx ends.
func runUntilDrained(ctx context.Context, rt *runtime.Runtime, progressOut io.Writer, showProgress bool) (prefetch.Status, error) {
	var bar *output.Progress
	if showProgress {
		bar = output.NewProgress(progressOut, "prefetch")
		defer bar.Done()
	}

	rt.Start()

	updates := make(chan prefetch.Status, 1)
	unsubscribe := rt.Scheduler().OnProgress(func(s prefetch.Status) {
		select {
		case updates <- s:
		default:
			// Drop the stale snapshot and keep the newest.
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			logger.Warn("Prefetch interrupted")
			return rt.Scheduler().Status(), ctx.Err()
		case s := <-updates:
			if bar != nil {
				bar.Update(s.Loaded, s.Total)
			}
			if s.Done() {
				return s, nil
			}
		}
	}
}
