// Package syncer drives one synchronization run: authenticate, list,
// diff against the local archive, download what is missing, summarize.
// Only authentication failure is fatal; everything else degrades to
// per-item failures in the run summary.
package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"invoicefetcher/internal/archive"
	"invoicefetcher/internal/auth"
	"invoicefetcher/internal/logger"
	"invoicefetcher/internal/portal"
	"invoicefetcher/pkg/models"
)

type state string

const (
	stateAuthenticating state = "authenticating"
	stateListing        state = "listing"
	stateDiffing        state = "diffing"
	stateDryRunReport   state = "dry_run_report"
	stateDownloading    state = "downloading"
	stateSummarizing    state = "summarizing"
)

// Orchestrator runs sync cycles. One orchestrator serves one destination
// root; each Run owns its session for the duration of the run.
type Orchestrator struct {
	authenticator auth.Authenticator
	client        *portal.Client
	root          string
	log           zerolog.Logger
}

func NewOrchestrator(authenticator auth.Authenticator, client *portal.Client, root string) *Orchestrator {
	return &Orchestrator{
		authenticator: authenticator,
		client:        client,
		root:          root,
		log:           logger.WithComponent("syncer"),
	}
}

// RunOptions configures a single sync run.
type RunOptions struct {
	Window models.SyncWindow

	// DryRun computes and reports the diff without touching the portal's
	// content endpoint or the local disk.
	DryRun bool
}

// Run executes one full sync cycle and returns its summary. A non-nil
// error means the run could not complete (authentication failure, an
// unrenewable session mid-run, or cancellation); the summary is still
// populated with whatever happened before the failure. Per-item download
// failures do not produce an error here.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*models.RunSummary, error) {
	summary := &models.RunSummary{Team: opts.Window.Team}

	o.transition(stateAuthenticating, opts.Window.Team)
	session, err := o.authenticator.Login(ctx)
	if err != nil {
		return summary, fmt.Errorf("authentication failed: %w", err)
	}

	o.transition(stateListing, opts.Window.Team)
	remote, truncated, malformed, err := o.listAll(ctx, session, opts.Window)
	if err != nil {
		// An unrenewable session or cancellation aborts the run; a
		// transient listing failure keeps the partial results instead.
		summary.Listed = len(remote)
		summary.MalformedRemote = malformed
		return summary, err
	}
	summary.Listed = len(remote)
	summary.ListingTruncated = truncated
	summary.MalformedRemote = malformed

	o.transition(stateDiffing, opts.Window.Team)
	// The index is built after listing completes to shrink the race
	// window against a concurrently running sync.
	index, inconsistencies, err := archive.BuildIndex(o.root, opts.Window.Team)
	if err != nil {
		return summary, fmt.Errorf("building local index: %w", err)
	}
	for _, inc := range inconsistencies {
		o.log.Warn().Str("path", inc.Path).Str("reason", inc.Reason).Msg("Local archive inconsistency")
		summary.Inconsistencies = append(summary.Inconsistencies, inc.String())
	}

	toDownload, alreadyPresent := Diff(remote, index)
	summary.AlreadyPresent = alreadyPresent

	if opts.DryRun {
		o.transition(stateDryRunReport, opts.Window.Team)
		materializer := archive.NewMaterializer(o.root)
		for _, rec := range toDownload {
			o.log.Info().
				Str("invoice_number", rec.InvoiceNumber).
				Str("path", materializer.Path(rec)).
				Msg("Would download")
		}
		summary.SkippedDryRun = len(toDownload)
		o.summarize(summary)
		return summary, nil
	}

	o.transition(stateDownloading, opts.Window.Team)
	if err := o.download(ctx, session, toDownload, summary); err != nil {
		o.summarize(summary)
		return summary, err
	}

	o.summarize(summary)
	return summary, nil
}

// listAll drains the listing iterator. truncated is true when a transient
// mid-listing failure cut the sequence short after partial results; the
// run proceeds with what was collected.
func (o *Orchestrator) listAll(ctx context.Context, session *auth.Session, window models.SyncWindow) (records []models.InvoiceRecord, truncated bool, malformed int, err error) {
	it := o.client.List(session, window)

	for {
		rec, err := it.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return records, false, it.Malformed(), err
			}
			if errors.Is(err, portal.ErrAuthExpired) {
				return records, false, it.Malformed(), fmt.Errorf("listing invoices: %w", err)
			}
			o.log.Warn().
				Err(err).
				Int("collected", len(records)).
				Msg("Listing failed mid-way, continuing with partial results")
			return records, true, it.Malformed(), nil
		}
		if rec == nil {
			return records, false, it.Malformed(), nil
		}
		records = append(records, *rec)
	}
}

// download fetches and materializes each missing invoice. Failures are
// isolated per item; only an unrenewable session or cancellation stops
// the queue, and even then the summary keeps what was done so far.
func (o *Orchestrator) download(ctx context.Context, session *auth.Session, toDownload []models.InvoiceRecord, summary *models.RunSummary) error {
	materializer := archive.NewMaterializer(o.root)

	for _, rec := range toDownload {
		// Cancellation is honored between invoices only; a started item
		// always finishes its atomic write.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		key := rec.Key()

		content, err := o.client.FetchContent(ctx, session, rec.ContentRef)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			summary.Failed++
			summary.Failures = append(summary.Failures, models.ItemFailure{
				Key:    key,
				Reason: err.Error(),
			})
			if errors.Is(err, portal.ErrAuthExpired) {
				// Renewal already failed inside the client; nothing else
				// in this run can succeed.
				o.log.Error().Err(err).Msg("Session unrenewable, aborting remaining downloads")
				return fmt.Errorf("session expired mid-run: %w", err)
			}
			o.log.Error().
				Err(err).
				Str("invoice_number", rec.InvoiceNumber).
				Msg("Failed to fetch invoice content")
			continue
		}

		path, created, err := materializer.Materialize(rec, content)
		if err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, models.ItemFailure{
				Key:    key,
				Reason: err.Error(),
			})
			o.log.Error().
				Err(err).
				Str("invoice_number", rec.InvoiceNumber).
				Msg("Failed to materialize invoice")
			continue
		}

		if !created {
			// Lost a race against a concurrent run; the invoice is there,
			// which is all that matters.
			summary.AlreadyPresent++
			continue
		}

		summary.Downloaded++
		o.log.Info().
			Str("invoice_number", rec.InvoiceNumber).
			Str("path", path).
			Msg("Downloaded invoice")
	}

	return nil
}

func (o *Orchestrator) transition(s state, team string) {
	o.log.Debug().
		Str("state", string(s)).
		Str("team", team).
		Msg("Sync state transition")
}

func (o *Orchestrator) summarize(summary *models.RunSummary) {
	o.transition(stateSummarizing, summary.Team)
	ev := o.log.Info().
		Str("team", summary.Team).
		Int("listed", summary.Listed).
		Int("already_present", summary.AlreadyPresent).
		Int("downloaded", summary.Downloaded).
		Int("skipped_dry_run", summary.SkippedDryRun).
		Int("failed", summary.Failed)
	if summary.MalformedRemote > 0 {
		ev = ev.Int("malformed_remote", summary.MalformedRemote)
	}
	if summary.ListingTruncated {
		ev = ev.Bool("listing_truncated", true)
	}
	ev.Msg("Sync run complete")

	for _, f := range summary.Failures {
		o.log.Warn().
			Str("invoice", f.Key.String()).
			Str("reason", f.Reason).
			Msg("Invoice not downloaded")
	}
}
