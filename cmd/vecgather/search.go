package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecgather/internal/config"
	"github.com/kailas-cloud/vecgather/internal/domain/search/mode"
	"github.com/kailas-cloud/vecgather/internal/domain/search/request"
	searchuc "github.com/kailas-cloud/vecgather/internal/usecase/search"
)

type searchOptions struct {
	mode    string
	limit   int
	topK    int
	timeout time.Duration
	tags    map[string]string
	json    bool
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run one scatter-gather search",
		Long: `Sends the query to every configured shard, merges the per-shard rankings
and prints the top hits. A partial result is printed if the gather deadline
expires before every shard answers.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := opts.request(args[0]); err != nil {
				return err
			}

			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			// Keep stdout clean for --json consumers.
			logger = logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))

			req, err := opts.resolve(args[0], cfg.Gather)
			if err != nil {
				return err
			}

			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("build app: %w", err)
			}
			defer a.Close()

			out, err := a.search.Search(cmd.Context(), &req)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			if opts.json {
				return writeSearchJSON(cmd.OutOrStdout(), out)
			}
			return writeSearchTable(cmd.OutOrStdout(), out)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.mode, "mode", "m", string(mode.Keyword), "search mode: keyword or semantic")
	f.IntVarP(&opts.limit, "limit", "n", 0, "maximum number of merged hits (default gather.default_limit)")
	f.IntVar(&opts.topK, "top-k", 0, "hits requested from each shard (default gather.top_k)")
	f.DurationVar(&opts.timeout, "timeout", 0, "gather deadline (default gather.timeout_ms)")
	f.StringToStringVar(&opts.tags, "tag", nil, "tag filter name=value, repeatable")
	f.BoolVar(&opts.json, "json", false, "output results as JSON")
	return cmd
}

func (o *searchOptions) request(query string) (request.Request, error) {
	return request.New(query, mode.Mode(o.mode), o.tags, o.topK, o.limit, o.timeout)
}

// resolve fills unset flags from the gather config and clamps the limit to
// gather.max_limit, the same way the HTTP API does.
func (o *searchOptions) resolve(query string, g config.GatherConfig) (request.Request, error) {
	limit := o.limit
	if limit <= 0 {
		limit = g.DefaultLimit
	}
	if g.MaxLimit > 0 && limit > g.MaxLimit {
		limit = g.MaxLimit
	}
	topK := o.topK
	if topK <= 0 {
		topK = g.TopK
	}
	return request.New(query, mode.Mode(o.mode), o.tags, topK, limit, o.timeout)
}

type searchJSON struct {
	SearchID  string    `json:"search_id"`
	Complete  bool      `json:"complete"`
	Shards    int       `json:"shards"`
	Responded int       `json:"responded"`
	Failed    int       `json:"failed"`
	TookMs    int64     `json:"took_ms"`
	Hits      []hitJSON `json:"hits"`
}

type hitJSON struct {
	Key   string  `json:"key"`
	Score float64 `json:"score"`
}

func writeSearchJSON(w io.Writer, out searchuc.Outcome) error {
	res := searchJSON{
		SearchID:  out.SearchID,
		Complete:  out.Complete,
		Shards:    out.Shards,
		Responded: out.Responded,
		Failed:    out.Failed,
		TookMs:    out.Took.Milliseconds(),
		Hits:      make([]hitJSON, 0, out.Hits.Size()),
	}
	for _, e := range out.Hits.Entries() {
		res.Hits = append(res.Hits, hitJSON{Key: e.Key(), Score: e.Score()})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	return nil
}

func writeSearchTable(w io.Writer, out searchuc.Outcome) error {
	if out.Hits.Size() == 0 {
		fmt.Fprintln(w, "No results found.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tKEY\tSCORE")
		for i, e := range out.Hits.Entries() {
			fmt.Fprintf(tw, "%d\t%s\t%.4f\n", i+1, e.Key(), e.Score())
		}
		if err := tw.Flush(); err != nil {
			return fmt.Errorf("write table: %w", err)
		}
	}

	status := "complete"
	if !out.Complete {
		status = "partial"
	}
	fmt.Fprintf(w, "\n%s: %d/%d shards answered, %d failed, %s\n",
		status, out.Responded, out.Shards, out.Failed, out.Took.Round(time.Millisecond))
	return nil
}
