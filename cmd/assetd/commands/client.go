package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/worshipwaves/WDweb-sub002/internal/cli/output"
	"github.com/worshipwaves/WDweb-sub002/pkg/apiclient"
)

const clientTimeout = 2 * time.Minute

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show prefetch progress of a running server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *apiclient.Client, p *output.Printer) error {
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			return p.Print(statusView(*st))
		})
	},
}

var itemCmd = &cobra.Command{
	Use:   "item <id>",
	Short: "Show the cache state of one catalog item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *apiclient.Client, p *output.Printer) error {
			item, err := c.Item(ctx, args[0])
			if err != nil {
				return explain(err, args[0])
			}
			return p.Print(itemView(*item))
		})
	},
}

var loadCmd = &cobra.Command{
	Use:   "load <id>",
	Short: "Load one catalog item immediately",
	Long: `Ask the server to load an item ahead of the idle schedule and wait
until its bundle is decoded.

Examples:
  assetd load walnut-03
  assetd load walnut-03 --server http://assets.internal:8080`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *apiclient.Client, p *output.Printer) error {
			st, err := c.Load(ctx, args[0])
			if err != nil {
				return explain(err, args[0])
			}
			if p.Format() == output.FormatTable {
				p.Success(fmt.Sprintf("Loaded %s", args[0]))
			}
			return p.Print(statusView(*st))
		})
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause background prefetching",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *apiclient.Client, p *output.Printer) error {
			st, err := c.Pause(ctx)
			if err != nil {
				return err
			}
			return p.Print(statusView(*st))
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume background prefetching",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *apiclient.Client, p *output.Printer) error {
			st, err := c.Resume(ctx)
			if err != nil {
				return err
			}
			return p.Print(statusView(*st))
		})
	},
}

var activityCmd = &cobra.Command{
	Use:   "activity <kind>",
	Short: "Report user activity to a running server",
	Long: `Report a user activity event. Prefetching pauses until the quiet
window passes without further events.

Kinds: press, tap, key, scroll, move.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *apiclient.Client, p *output.Printer) error {
			if err := c.Activity(ctx, args[0]); err != nil {
				return err
			}
			p.Success(fmt.Sprintf("Reported %s activity", args[0]))
			return nil
		})
	},
}

func withClient(cmd *cobra.Command, fn func(context.Context, *apiclient.Client, *output.Printer) error) error {
	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), clientTimeout)
	defer cancel()
	return fn(ctx, apiclient.New(serverURL), printer)
}

func explain(err error, id string) error {
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.IsNotFound():
		return fmt.Errorf("item %q is not in the catalog", id)
	case apiErr.IsFetchFailure():
		return fmt.Errorf("item %q failed to load: %s", id, apiErr.Detail)
	case apiErr.IsTimeout():
		return fmt.Errorf("item %q did not load in time", id)
	}
	return err
}

type statusView apiclient.Status

func (s statusView) Headers() []string {
	return []string{"STATE", "LOADED", "TOTAL", "REMAINING"}
}

func (s statusView) Rows() [][]string {
	return [][]string{{s.State, strconv.Itoa(s.Loaded), strconv.Itoa(s.Total), strconv.Itoa(s.Remaining)}}
}

type itemView apiclient.Item

func (v itemView) Headers() []string {
	return []string{"KEY", "STATE", "ERROR"}
}

func (v itemView) Rows() [][]string {
	rows := make([][]string, 0, len(v.Keys))
	for _, k := range v.Keys {
		rows = append(rows, []string{k.Key, k.State, k.Error})
	}
	return rows
}
