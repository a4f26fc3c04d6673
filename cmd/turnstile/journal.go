package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mercator-hq/turnstile/pkg/cli"
	"mercator-hq/turnstile/pkg/config"
	"mercator-hq/turnstile/pkg/journal"
	"mercator-hq/turnstile/pkg/journal/retention"
	journalstorage "mercator-hq/turnstile/pkg/journal/storage"
	"mercator-hq/turnstile/pkg/telemetry/logging"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect and prune the decision journal",
	Long: `Inspect and prune the decision journal.

The journal is read from the backend configured under journal: in the
config file. Only the sqlite backend persists between runs.`,
}

var queryFlags struct {
	since    string
	until    string
	limiter  string
	identity string
	allowed  bool
	rejected bool
	limit    int
	offset   int
	order    string
	output   string
}

var journalQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query journaled decisions",
	Long: `Query journaled decisions, newest first by default.

--since and --until accept an RFC 3339 timestamp or a duration, which is
read as that long ago.

Examples:
  # Rejections in the last hour
  turnstile journal query --since 1h --rejected

  # One identity on one limiter, as JSON
  turnstile journal query --limiter api --identity user-42 --output json`,
	Args: cobra.NoArgs,
	RunE: runJournalQuery,
}

var pruneFlags struct {
	olderThan time.Duration
}

var journalPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete journaled decisions past retention",
	Long: `Delete journaled decisions older than the retention age.

Without --older-than the journal.retention.max_age setting applies.

Examples:
  turnstile journal prune
  turnstile journal prune --older-than 24h`,
	Args: cobra.NoArgs,
	RunE: runJournalPrune,
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalQueryCmd)
	journalCmd.AddCommand(journalPruneCmd)

	f := journalQueryCmd.Flags()
	f.StringVar(&queryFlags.since, "since", "", "only decisions at or after this time")
	f.StringVar(&queryFlags.until, "until", "", "only decisions before this time")
	f.StringVar(&queryFlags.limiter, "limiter", "", "filter by limiter name")
	f.StringVar(&queryFlags.identity, "identity", "", "filter by identity (fingerprinted when journal.recorder.hash_identities is set)")
	f.BoolVar(&queryFlags.allowed, "allowed", false, "only allowed decisions")
	f.BoolVar(&queryFlags.rejected, "rejected", false, "only rejected decisions")
	f.IntVar(&queryFlags.limit, "limit", 0, "maximum number of records (default journal.query.default_limit)")
	f.IntVar(&queryFlags.offset, "offset", 0, "skip this many records")
	f.StringVar(&queryFlags.order, "order", string(journal.OrderDesc), "sort order: desc, asc")
	f.StringVarP(&queryFlags.output, "output", "o", "text", "output format: text, json, csv")
	journalQueryCmd.MarkFlagsMutuallyExclusive("allowed", "rejected")

	journalPruneCmd.Flags().DurationVar(&pruneFlags.olderThan, "older-than", 0, "delete decisions older than this (default journal.retention.max_age)")
}

// recordList renders journal records.
type recordList struct {
	Records []*journal.Record `json:"records"`
	Total   int64             `json:"total"`
	now     time.Time
}

func (l recordList) Table() cli.Table {
	t := cli.Table{Headers: []string{"TIME", "LIMITER", "STRATEGY", "IDENTITY", "RESULT", "REQUEST ID"}}
	for _, r := range l.Records {
		result := "rejected"
		if r.Allowed {
			result = "allowed"
		}
		ts := r.Timestamp.UTC().Format(time.RFC3339)
		if !l.now.IsZero() {
			ts = humanize.RelTime(r.Timestamp, l.now, "ago", "from now")
		}
		t.Rows = append(t.Rows, []string{ts, r.Limiter, r.Strategy, r.Identity, result, r.RequestID})
	}
	return t
}

func runJournalQuery(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(queryFlags.output, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	now := time.Now()
	q, err := buildQuery(&cfg.Journal, now)
	if err != nil {
		return err
	}

	st, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.Query(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("journal query", err)
	}
	total, err := st.Count(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("journal query", err)
	}

	list := recordList{Records: records, Total: total}
	if records == nil {
		list.Records = []*journal.Record{}
	}
	out := cmd.OutOrStdout()
	if format != cli.FormatText {
		return cli.NewFormatter(format).FormatTo(out, list)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No matching decisions.")
		return nil
	}
	list.now = now
	if err := cli.NewFormatter(format).FormatTo(out, list); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nShowing %s of %s matching decisions\n",
		humanize.Comma(int64(len(records))), humanize.Comma(total))
	return nil
}

// buildQuery turns the query flags into a journal query. The identity is
// fingerprinted the same way the recorder stores it.
func buildQuery(jc *config.JournalConfig, now time.Time) (*journal.Query, error) {
	qc := &jc.Query
	q := &journal.Query{
		Limiter:  queryFlags.limiter,
		Identity: queryFlags.identity,
		Offset:   queryFlags.offset,
		Limit:    queryFlags.limit,
	}

	switch journal.Order(queryFlags.order) {
	case journal.OrderAsc, journal.OrderDesc:
		q.Order = journal.Order(queryFlags.order)
	default:
		return nil, cli.NewUsageError("--order must be desc or asc, got %q", queryFlags.order)
	}

	if q.Offset < 0 {
		return nil, cli.NewUsageError("--offset must not be negative, got %d", q.Offset)
	}
	if q.Limit < 0 {
		return nil, cli.NewUsageError("--limit must not be negative, got %d", q.Limit)
	}
	if q.Limit == 0 {
		q.Limit = qc.DefaultLimit
	}
	if qc.MaxLimit > 0 && q.Limit > qc.MaxLimit {
		q.Limit = qc.MaxLimit
	}

	if q.Identity != "" && jc.Recorder.HashIdentities {
		q.Identity = logging.Fingerprint(q.Identity)
	}

	if queryFlags.allowed || queryFlags.rejected {
		allowed := queryFlags.allowed
		q.Allowed = &allowed
	}

	var err error
	if q.Since, err = parseTimeFlag("since", queryFlags.since, now); err != nil {
		return nil, err
	}
	if q.Until, err = parseTimeFlag("until", queryFlags.until, now); err != nil {
		return nil, err
	}
	if q.Since != nil && q.Until != nil && !q.Since.Before(*q.Until) {
		return nil, cli.NewUsageError("--since must be before --until")
	}
	return q, nil
}

// parseTimeFlag accepts an RFC 3339 timestamp, a Unix timestamp, or a
// duration counted back from now.
func parseTimeFlag(name, value string, now time.Time) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		t := time.Unix(secs, 0)
		return &t, nil
	}
	if d, err := time.ParseDuration(value); err == nil && d >= 0 {
		t := now.Add(-d)
		return &t, nil
	}
	return nil, cli.NewUsageError("--%s: %q is neither a timestamp nor a duration", name, value)
}

func runJournalPrune(cmd *cobra.Command, args []string) error {
	if pruneFlags.olderThan < 0 {
		return cli.NewUsageError("--older-than must not be negative, got %s", pruneFlags.olderThan)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	st, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rc := retention.ConfigFrom(&cfg.Journal.Retention)
	rc.Logger = logger
	pruner := retention.NewPruner(st, rc)

	out := cmd.OutOrStdout()
	var deleted int64
	switch {
	case pruneFlags.olderThan > 0:
		deleted, err = pruner.PruneBefore(cmd.Context(), time.Now().Add(-pruneFlags.olderThan))
	case rc.MaxAge > 0:
		deleted, err = pruner.Prune(cmd.Context())
	default:
		fmt.Fprintln(out, "Retention is disabled; pass --older-than to prune.")
		return nil
	}
	if err != nil {
		return cli.NewCommandError("journal prune", err)
	}

	fmt.Fprintf(out, "✓ Pruned %s decisions\n", humanize.Comma(deleted))
	return nil
}

func openJournal(cfg *config.Config) (journal.Storage, error) {
	if cfg.Journal.Backend == "memory" {
		return nil, cli.NewUsageError("journal backend %q does not persist between runs", cfg.Journal.Backend)
	}
	st, err := journalstorage.Open(&cfg.Journal, nil)
	if err != nil {
		return nil, cli.NewCommandError("journal", err)
	}
	return st, nil
}
