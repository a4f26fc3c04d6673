package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mercator-hq/turnstile/pkg/cli"
	"mercator-hq/turnstile/pkg/config"
)

var validateFlags struct {
	output string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file, then list its limiters.

Every problem is reported at once. Exit status is 2 when the file is
invalid.

Examples:
  turnstile validate --config turnstile.yaml
  turnstile validate --config turnstile.yaml --output json`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.output, "output", "o", "text", "output format: text, json, csv")
}

// limiterReport describes one configured limiter.
type limiterReport struct {
	Name     string `json:"name"`
	Strategy string `json:"strategy"`
	Params   string `json:"params"`
}

type validateReport struct {
	Valid    bool            `json:"valid"`
	Limiters []limiterReport `json:"limiters"`
	Gateway  string          `json:"gateway,omitempty"`
	Journal  string          `json:"journal,omitempty"`
}

func (r validateReport) Table() cli.Table {
	t := cli.Table{Headers: []string{"LIMITER", "STRATEGY", "PARAMETERS"}}
	for _, l := range r.Limiters {
		t.Rows = append(t.Rows, []string{l.Name, l.Strategy, l.Params})
	}
	return t
}

func runValidate(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(validateFlags.output, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	report := validateReport{Valid: true}
	for _, name := range limiterNames(cfg) {
		l := cfg.Limiters[name]
		report.Limiters = append(report.Limiters, limiterReport{
			Name:     name,
			Strategy: l.Strategy,
			Params:   describeLimiter(l),
		})
	}
	if cfg.Gateway.Upstream != "" {
		report.Gateway = fmt.Sprintf("%s via %s", cfg.Gateway.Upstream, cfg.Gateway.DefaultLimiter)
	}
	if cfg.Journal.Enabled {
		report.Journal = fmt.Sprintf("%s (%s)", cfg.Journal.Backend, cfg.Journal.Mode)
	}

	out := cmd.OutOrStdout()
	if format != cli.FormatText {
		return cli.NewFormatter(format).FormatTo(out, report)
	}

	fmt.Fprintf(out, "✓ Configuration valid: %s\n\n", cfgFile)
	if err := cli.NewFormatter(format).FormatTo(out, report); err != nil {
		return err
	}
	if report.Gateway != "" {
		fmt.Fprintf(out, "\nGateway: %s\n", report.Gateway)
	}
	if report.Journal != "" {
		fmt.Fprintf(out, "Journal: %s\n", report.Journal)
	}
	return nil
}

// describeLimiter summarizes the parameters of the selected strategy.
func describeLimiter(l config.LimiterConfig) string {
	switch l.Strategy {
	case "sliding_window_log":
		return fmt.Sprintf("%s requests per %s", humanize.Comma(int64(l.RequestsAllowed)), l.Window)
	case "token_bucket":
		return fmt.Sprintf("limit %s, %s tokens every %s",
			humanize.Comma(int64(l.Limit)), strconv.FormatFloat(l.TokensPerInterval, 'g', -1, 64), l.RefillInterval)
	case "leaky_bucket":
		return fmt.Sprintf("capacity %s, drains %s/s (%s per request)",
			humanize.Comma(int64(l.Capacity)), strconv.FormatFloat(l.LeakRate, 'g', -1, 64),
			time.Duration(float64(time.Second)/l.LeakRate))
	default:
		return ""
	}
}
