package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"depctx/internal/config"
	"depctx/internal/mirror"
	"depctx/internal/tui"
)

var (
	mirrorWorkers    int
	mirrorRetries    int
	mirrorNoProgress bool
)

func newMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Copy packages from NuGet v3 feeds",
	}
	cmd.AddCommand(newMirrorGoCmd())
	cmd.AddCommand(newMirrorFeedsCmd())
	return cmd
}

func newMirrorGoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "go [output-dir]",
		Short: "Download every package listed by the configured feeds",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMirrorGo,
	}
	cmd.Flags().IntVar(&mirrorWorkers, "workers", 0, "Concurrent downloads (defaults to mirror.workers)")
	cmd.Flags().IntVar(&mirrorRetries, "retries", 0, "Retries per package after the first attempt (defaults to mirror.retries)")
	cmd.Flags().BoolVar(&mirrorNoProgress, "no-progress", false, "Print one line per event instead of the live table")
	return cmd
}

func newMirrorFeedsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feeds",
		Short: "List the feeds mirror go would read",
		Args:  cobra.NoArgs,
		RunE:  runMirrorFeeds,
	}
}

type mirrorFeedSummary struct {
	Feed       string   `json:"feed"`
	URL        string   `json:"url"`
	Listed     int      `json:"listed"`
	Downloaded int      `json:"downloaded"`
	Duplicates int      `json:"duplicates"`
	Failed     []string `json:"failed"`
	Error      string   `json:"error,omitempty"`
}

type mirrorSummary struct {
	Sink       string              `json:"sink"`
	Downloaded int                 `json:"downloaded"`
	Failed     int                 `json:"failed"`
	Feeds      []mirrorFeedSummary `json:"feeds"`
}

func runMirrorGo(cmd *cobra.Command, args []string) error {
	ws, err := loadWorkspace()
	if err != nil {
		return err
	}
	env, err := ws.environment()
	if err != nil {
		return err
	}
	logger, closeLog := ws.openLogger("mirror")
	defer closeLog()

	outputDir := ""
	if len(args) > 0 {
		outputDir = args[0]
	}
	sink, err := newMirrorSink(ws.Config.Mirror, env.S3, outputDir)
	if err != nil {
		return err
	}

	m := newMirror(cmd, ws.Config.Mirror, sink)
	m.Logger = logger
	feeds := mirrorFeeds(ws.Config.Mirror)
	logger.Printf("mirroring %d feed(s) into %s", len(feeds), sink)

	ctx := commandContext(cmd)
	var (
		result mirror.Result
		runErr error
	)
	mode := tui.DetectMode(cmd.ErrOrStderr(), mirrorNoProgress, outputJSON, env.CIBuild)
	switch mode {
	case tui.ModeTUI:
		model := tui.NewMirrorModel("Mirroring into "+sink.String(), feeds)
		err := tui.RunWithWork(ctx, cmd.ErrOrStderr(), model, func(ctx context.Context, send func(tea.Msg)) error {
			m.Reporter = tui.NewMirrorReporter(send)
			result, runErr = m.Run(ctx, feeds)
			return nil
		})
		if err != nil {
			return err
		}
	case tui.ModePlain:
		m.Reporter = mirror.LogReporter(cmd.ErrOrStderr())
		result, runErr = m.Run(ctx, feeds)
	default:
		result, runErr = m.Run(ctx, feeds)
	}

	summary := summarizeMirror(sink, result)
	logger.Printf("mirror finished: downloaded=%d failed=%d", summary.Downloaded, summary.Failed)
	if runErr != nil {
		logger.Printf("mirror errors: %v", runErr)
	}

	if mode == tui.ModeJSON {
		if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
			return err
		}
	} else {
		if err := printMirrorSummary(cmd, summary); err != nil {
			return err
		}
	}

	if runErr != nil {
		if len(result.Feeds) == 0 {
			return runErr
		}
		return fmt.Errorf("mirror incomplete: %d package(s) failed, %d feed(s) unavailable", summary.Failed, unavailableFeeds(summary))
	}
	return nil
}

func unavailableFeeds(summary mirrorSummary) int {
	n := 0
	for _, f := range summary.Feeds {
		if f.Error != "" {
			n++
		}
	}
	return n
}

func runMirrorFeeds(cmd *cobra.Command, _ []string) error {
	ws, err := loadWorkspace()
	if err != nil {
		return err
	}
	feeds := mirrorFeeds(ws.Config.Mirror)

	if outputJSON {
		type feedJSON struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		}
		out := make([]feedJSON, 0, len(feeds))
		for _, f := range feeds {
			out = append(out, feedJSON{Name: f.Label(), URL: f.URL})
		}
		return writeJSON(cmd.OutOrStdout(), out)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tURL")
	for _, f := range feeds {
		fmt.Fprintf(tw, "%s\t%s\n", f.Label(), f.URL)
	}
	return tw.Flush()
}

// newMirror applies command flags over the mirror section of depctx.yaml.
func newMirror(cmd *cobra.Command, cfg config.MirrorConfig, sink mirror.Sink) *mirror.Mirror {
	workers := cfg.Workers
	if cmd.Flags().Changed("workers") && mirrorWorkers > 0 {
		workers = mirrorWorkers
	}
	retries := cfg.Retries
	if cmd.Flags().Changed("retries") && mirrorRetries >= 0 {
		retries = mirrorRetries
	}

	return &mirror.Mirror{
		Sink: sink,
		Pool: mirror.Pool{
			Workers: workers,
			Retry: mirror.RetryPolicy{
				Attempts:  retries + 1,
				BaseDelay: cfg.RetryBaseDelay(),
				MaxDelay:  cfg.RetryMaxDelay(),
			},
		},
		PageSize:      cfg.PageSize,
		SeenCacheSize: cfg.SeenCacheSize,
	}
}

func mirrorFeeds(cfg config.MirrorConfig) []mirror.Feed {
	feeds := make([]mirror.Feed, 0, len(cfg.Feeds))
	for _, f := range cfg.Feeds {
		feeds = append(feeds, mirror.Feed{Name: f.Name, URL: f.URL})
	}
	return feeds
}

// newMirrorSink picks the sink configured in depctx.yaml. The dir sink
// writes into outputDir; the s3 sink takes credentials from the environment.
func newMirrorSink(cfg config.MirrorConfig, creds config.S3Credentials, outputDir string) (mirror.Sink, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Sink.Kind)) {
	case "", config.SinkDir:
		if strings.TrimSpace(outputDir) == "" {
			return nil, errors.New("no output directory specified")
		}
		return mirror.NewDirSink(outputDir)
	case config.SinkS3:
		endpoint := firstSet(cfg.Sink.Endpoint, creds.Endpoint)
		return mirror.NewS3Sink(mirror.S3Config{
			Endpoint:  endpoint,
			Region:    creds.Region,
			AccessKey: creds.AccessKey,
			SecretKey: creds.SecretKey,
			Bucket:    cfg.Sink.Bucket,
			Prefix:    cfg.Sink.Prefix,
			UseSSL:    creds.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown mirror sink %q", cfg.Sink.Kind)
	}
}

func summarizeMirror(sink mirror.Sink, result mirror.Result) mirrorSummary {
	summary := mirrorSummary{
		Sink:       sink.String(),
		Downloaded: result.Downloaded(),
		Failed:     result.Failed(),
		Feeds:      make([]mirrorFeedSummary, 0, len(result.Feeds)),
	}
	for _, fr := range result.Feeds {
		fs := mirrorFeedSummary{
			Feed:       fr.Feed.Label(),
			URL:        fr.Feed.URL,
			Listed:     fr.Listed,
			Downloaded: fr.Report.Succeeded,
			Duplicates: fr.Duplicates,
			Failed:     []string{},
		}
		for _, f := range fr.Report.Failures {
			fs.Failed = append(fs.Failed, f.Key)
		}
		if fr.Err != nil {
			fs.Error = fr.Err.Error()
		}
		summary.Feeds = append(summary.Feeds, fs)
	}
	return summary
}

func printMirrorSummary(cmd *cobra.Command, summary mirrorSummary) error {
	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FEED\tLISTED\tDOWNLOADED\tDUPLICATES\tFAILED")
	for _, f := range summary.Feeds {
		failed := fmt.Sprint(len(f.Failed))
		if f.Error != "" {
			failed = "feed unavailable"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", f.Feed, f.Listed, f.Downloaded, f.Duplicates, failed)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nMirrored %d package(s) into %s", summary.Downloaded, summary.Sink)
	if summary.Failed > 0 {
		fmt.Fprintf(out, ", %d failed", summary.Failed)
	}
	fmt.Fprintln(out)
	return nil
}
