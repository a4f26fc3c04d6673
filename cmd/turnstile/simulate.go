package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mercator-hq/turnstile/pkg/cli"
	"mercator-hq/turnstile/pkg/limits"
	"mercator-hq/turnstile/pkg/limits/ratelimit"
	"mercator-hq/turnstile/pkg/telemetry/logging"
)

var simulateFlags struct {
	requests   int
	interval   time.Duration
	identities int
	output     string
	verbose    bool
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <limiter>",
	Short: "Replay a synthetic request stream against a limiter",
	Long: `Replay a synthetic request stream against a configured limiter.

Requests are spread round-robin over --identities identities and spaced
--interval apart on a simulated clock, so the run is instant and
deterministic. Nothing is journaled.

Examples:
  # 20 requests, one every 100ms, for a single identity
  turnstile simulate api --requests 20 --interval 100ms

  # Per-request decisions as CSV
  turnstile simulate burst --requests 50 --identities 5 --verbose --output csv`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().IntVarP(&simulateFlags.requests, "requests", "n", 10, "number of requests to replay")
	simulateCmd.Flags().DurationVarP(&simulateFlags.interval, "interval", "i", 100*time.Millisecond, "simulated time between requests")
	simulateCmd.Flags().IntVar(&simulateFlags.identities, "identities", 1, "number of distinct identities")
	simulateCmd.Flags().StringVarP(&simulateFlags.output, "output", "o", "text", "output format: text, json, csv")
	simulateCmd.Flags().BoolVarP(&simulateFlags.verbose, "verbose", "v", false, "list every decision")
}

// simulatedRequest is one replayed decision.
type simulatedRequest struct {
	Seq      int           `json:"seq"`
	Offset   time.Duration `json:"offset_ns"`
	Identity string        `json:"identity"`
	Allowed  bool          `json:"allowed"`
}

type simulationResult struct {
	Limiter   string             `json:"limiter"`
	Strategy  string             `json:"strategy"`
	Requests  int                `json:"requests"`
	Allowed   int                `json:"allowed"`
	Rejected  int                `json:"rejected"`
	Elapsed   time.Duration      `json:"elapsed_ns"`
	Decisions []simulatedRequest `json:"decisions,omitempty"`
}

func (r *simulationResult) Table() cli.Table {
	if len(r.Decisions) == 0 {
		return cli.Table{
			Headers: []string{"LIMITER", "STRATEGY", "REQUESTS", "ALLOWED", "REJECTED"},
			Rows: [][]string{{
				r.Limiter, r.Strategy,
				strconv.Itoa(r.Requests), strconv.Itoa(r.Allowed), strconv.Itoa(r.Rejected),
			}},
		}
	}
	t := cli.Table{Headers: []string{"SEQ", "OFFSET", "IDENTITY", "RESULT"}}
	for _, d := range r.Decisions {
		result := limits.ResultRejected
		if d.Allowed {
			result = limits.ResultAllowed
		}
		t.Rows = append(t.Rows, []string{strconv.Itoa(d.Seq), d.Offset.String(), d.Identity, result})
	}
	return t
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simulateFlags.requests <= 0 {
		return cli.NewUsageError("--requests must be positive, got %d", simulateFlags.requests)
	}
	if simulateFlags.identities <= 0 {
		return cli.NewUsageError("--identities must be positive, got %d", simulateFlags.identities)
	}
	if simulateFlags.interval < 0 {
		return cli.NewUsageError("--interval must not be negative, got %s", simulateFlags.interval)
	}
	format, err := cli.ParseFormat(simulateFlags.output, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	name := args[0]
	if _, ok := cfg.Limiters[name]; !ok {
		return cli.NewUsageError("limiter %q is not configured", name)
	}

	result, err := simulate(cmd.Context(), name, cfg.RateLimits()[name], simulateFlags.requests,
		simulateFlags.identities, simulateFlags.interval, simulateFlags.verbose)
	if err != nil {
		return cli.NewCommandError("simulate", err)
	}

	out := cmd.OutOrStdout()
	if err := cli.NewFormatter(format).FormatTo(out, result); err != nil {
		return err
	}
	if format == cli.FormatText {
		fmt.Fprintf(out, "\n%s of %s requests allowed over %s (%s rejected)\n",
			humanize.Comma(int64(result.Allowed)), humanize.Comma(int64(result.Requests)),
			result.Elapsed, humanize.Comma(int64(result.Rejected)))
	}
	return nil
}

// simulate replays requests against a private manager driven by a manual clock.
func simulate(ctx context.Context, name string, lc ratelimit.Config, requests, identities int,
	interval time.Duration, verbose bool) (*simulationResult, error) {
	start := time.Unix(0, 0).UTC()
	clock := ratelimit.NewManualClock(start)

	mgr, err := limits.NewManager(limits.Config{
		Limiters: map[string]ratelimit.Config{name: lc},
		Clock:    clock,
		Logger:   logging.Discard(),
	})
	if err != nil {
		return nil, err
	}
	defer mgr.Close()

	result := &simulationResult{
		Limiter:  name,
		Strategy: string(lc.Strategy),
		Requests: requests,
	}
	for i := 0; i < requests; i++ {
		if i > 0 {
			clock.Advance(interval)
		}
		identity := fmt.Sprintf("user-%d", i%identities)
		d, err := mgr.Check(ctx, name, identity)
		if err != nil {
			return nil, err
		}
		if d.Allowed {
			result.Allowed++
		} else {
			result.Rejected++
		}
		if verbose {
			result.Decisions = append(result.Decisions, simulatedRequest{
				Seq:      i + 1,
				Offset:   clock.Now().Sub(start),
				Identity: identity,
				Allowed:  d.Allowed,
			})
		}
	}
	result.Elapsed = clock.Now().Sub(start)
	return result, nil
}
