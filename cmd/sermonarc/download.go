package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sermonarc/sermonarc/internal/auth"
	"github.com/sermonarc/sermonarc/internal/catalog"
	"github.com/sermonarc/sermonarc/internal/cleanup"
	"github.com/sermonarc/sermonarc/internal/collection"
	"github.com/sermonarc/sermonarc/internal/config"
	"github.com/sermonarc/sermonarc/internal/download"
	"github.com/sermonarc/sermonarc/internal/http/rest"
	"github.com/sermonarc/sermonarc/internal/logctx"
	"github.com/sermonarc/sermonarc/internal/notifier"
	"github.com/sermonarc/sermonarc/internal/storage/sqlite"
	"github.com/sermonarc/sermonarc/internal/tagger"
	"github.com/sermonarc/sermonarc/internal/telemetry"
	"github.com/sermonarc/sermonarc/internal/transfer"
)

const shutdownTimeout = 5 * time.Second

func newDownloadCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		speakerID     string
		broadcasterID string
		seriesID      string
		sermonID      string
		startPage     int
	)

	cmd := &cobra.Command{
		Use:   "download [catalog URL or sermon ID]",
		Short: "Download every sermon of a speaker, broadcaster or series",
		Long: `Download walks a whole catalog collection and fetches the best matching
rendition of every sermon in it. The collection comes from a catalog URL, a
bare sermon ID, or one of the identifier flags. Items already on disk are
skipped, so an interrupted run picks up where it left off.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := resolveRef(args, speakerID, broadcasterID, seriesID, sermonID)
			if err != nil {
				return err
			}

			ctx, cfg, tel, err := cmdCtx.bootstrap(cmd.Context())
			if err != nil {
				return err
			}

			return runDownload(ctx, cmd.OutOrStdout(), cfg, tel, ref, startPage)
		},
	}

	cmd.Flags().StringVar(&speakerID, "speaker", "", "Download a speaker's whole collection")
	cmd.Flags().StringVar(&broadcasterID, "broadcaster", "", "Download a broadcaster's whole collection")
	cmd.Flags().StringVar(&seriesID, "series", "", "Download a whole series")
	cmd.Flags().StringVar(&sermonID, "sermon", "", "Download a single sermon")
	cmd.Flags().IntVar(&startPage, "start-page", 0, "Resume the collection walk at this listing page")

	return cmd
}

// resolveRef turns flag and positional input into exactly one collection
// reference.
func resolveRef(args []string, speakerID, broadcasterID, seriesID, sermonID string) (collection.Ref, error) {
	var refs []collection.Ref

	if speakerID != "" {
		refs = append(refs, collection.Ref{Kind: collection.KindSpeaker, ID: speakerID})
	}

	if broadcasterID != "" {
		refs = append(refs, collection.Ref{Kind: collection.KindBroadcaster, ID: broadcasterID})
	}

	if seriesID != "" {
		refs = append(refs, collection.Ref{Kind: collection.KindSeries, ID: seriesID})
	}

	if sermonID != "" {
		refs = append(refs, collection.Ref{Kind: collection.KindSermon, ID: sermonID})
	}

	if len(args) == 1 {
		ref, err := collection.Parse(args[0])
		if err != nil {
			return collection.Ref{}, err
		}

		refs = append(refs, ref)
	}

	switch len(refs) {
	case 0:
		return collection.Ref{}, errors.New("nothing to download: pass a catalog URL or one of --speaker, --broadcaster, --series, --sermon")
	case 1:
		return refs[0], nil
	default:
		return collection.Ref{}, errors.New("pass exactly one collection reference")
	}
}

func runDownload(
	ctx context.Context,
	out io.Writer,
	cfg *config.Config,
	tel *telemetry.Telemetry,
	ref collection.Ref,
	startPage int,
) error {
	logger := logctx.LoggerFromContext(ctx)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start Database
	database, err := sqlite.InitDB(cfg.DatabasePath)
	if err != nil {
		logger.Error("DB error", "err", err)

		return err
	}
	defer database.Close()

	ledger := sqlite.NewInstrumentedRepository(database, tel)

	// =========================================================================
	// Sweep Stale Partials
	if removed, err := cleanup.RemoveStaleParts(ctx, cfg.OutputDir, cfg.StalePartsAfter.Duration); err != nil {
		logger.Warn("failed to sweep stale partial files", "err", err)
	} else if removed > 0 {
		logger.Info("swept stale partial files", "count", removed)
	}

	// =========================================================================
	// Start Credential Manager
	creds := auth.NewManager(
		&auth.WebKeySource{WebURL: cfg.WebBaseURL, HTTP: httpClient(cfg.HTTPTimeout.Duration)},
		&auth.FileStore{Path: cfg.CredentialPath},
		tel,
	)

	if _, err := creds.Token(ctx); err != nil {
		return fmt.Errorf("acquiring catalog credential: %w", err)
	}

	// =========================================================================
	// Start Catalog Client and Transfer Executor
	client := catalog.New(cfg.APIBaseURL, cfg.WebBaseURL, creds, httpClient(cfg.HTTPTimeout.Duration), tel)
	executor := transfer.NewExecutor(httpClient(0), creds, tagger.NewID3(), tel)

	// =========================================================================
	// Start Metrics Listener
	var group errgroup.Group

	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()

	if cfg.MetricsAddr != "" {
		group.Go(func() error {
			return serveMetrics(serveCtx, cfg.MetricsAddr, tel)
		})
	}

	// =========================================================================
	// Start Run
	policy := download.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.MaxAttempts

	resolver := download.NewResolver(download.MediaKind(cfg.Kind), cfg.Quality)
	scheduler := download.NewScheduler(resolver, executor, creds, cfg.OutputDir, cfg.MaxParallel, policy)

	coordinator := download.NewCoordinator(client, scheduler, ledger, creds, cfg.PageSize, policy)
	if startPage > 1 {
		coordinator = coordinator.WithStartPage(startPage)
	}

	report := coordinator.Execute(ctx, ref)

	stopServing()

	if err := group.Wait(); err != nil {
		logger.Warn("metrics listener failed", "err", err)
	}

	printRunReport(out, report)
	notifyRunOutcome(ctx, cfg, report)

	switch {
	case report.Err != nil:
		return report.Err
	case report.Failed > 0:
		return fmt.Errorf("%d of %d downloads failed", report.Failed, len(report.Results))
	}

	return nil
}

// notifyRunOutcome pushes a one-line run summary to the configured webhook.
// Best effort: failures are logged, never returned.
func notifyRunOutcome(ctx context.Context, cfg *config.Config, report *download.RunReport) {
	if cfg.DiscordWebhookURL == "" {
		return
	}

	notif := &notifier.DiscordNotifier{
		WebhookURL: cfg.DiscordWebhookURL,
		HTTP:       httpClient(cfg.HTTPTimeout.Duration),
	}

	summary := fmt.Sprintf("%d downloaded, %d skipped, %s",
		report.Succeeded, report.Skipped, humanize.Bytes(uint64(report.BytesFetched)))

	var content string

	switch {
	case report.Err != nil:
		content = fmt.Sprintf("❌ Download run for %s aborted: %v (%s)", report.Ref, report.Err, summary)
	case report.Failed > 0:
		content = fmt.Sprintf("❌ Download run for %s finished with %d failures (%s)", report.Ref, report.Failed, summary)
	default:
		content = fmt.Sprintf("✅ Download run for %s finished (%s)", report.Ref, summary)
	}

	// Outlive a cancelled run context so an aborted run still reports.
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := notif.Notify(nctx, content); err != nil {
		logctx.LoggerFromContext(ctx).Warn("failed to send notification", "err", err)
	}
}

// serveMetrics exposes /metrics and /healthz until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, tel *telemetry.Telemetry) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           rest.NewOpsHandler(tel).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	// Buffered so the goroutine can exit even if we never collect the error.
	serverErrors := make(chan error, 1)

	go func() {
		logctx.LoggerFromContext(ctx).Info("metrics listener up", "addr", addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("metrics listener: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return server.Close()
		}

		return nil
	}
}

func printRunReport(w io.Writer, report *download.RunReport) {
	rows := [][]string{
		{"Collection", report.Ref.String()},
		{"Run", report.RunID},
		{"Succeeded", strconv.Itoa(report.Succeeded)},
		{"Skipped", strconv.Itoa(report.Skipped)},
		{"Failed", strconv.Itoa(report.Failed)},
		{"Duplicates dropped", strconv.Itoa(report.Deduped)},
		{"Fetched", humanize.Bytes(uint64(report.BytesFetched))},
		{"Elapsed", report.Elapsed.Round(time.Millisecond).String()},
	}

	fmt.Fprintln(w, renderTable([]string{"Run", "Result"}, rows, nil))

	failures := report.Failures()
	if len(failures) == 0 {
		return
	}

	frows := make([][]string, 0, len(failures))
	for _, f := range failures {
		frows = append(frows, []string{f.ItemID, f.Title, strconv.Itoa(f.Attempts), f.Reason})
	}

	fmt.Fprintln(w, renderTable(
		[]string{"Item", "Title", "Attempts", "Error"},
		frows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
}
