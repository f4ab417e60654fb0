// Package app wires the report clerk's collaborators into the polling loop
// and hosts its runtime dependencies.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/xqbot/vmbot/internal/services/vmbot/domain"
	"github.com/xqbot/vmbot/internal/services/vmbot/storage"
	"github.com/xqbot/vmbot/internal/wiki"
)

// blockActions are the log actions that close a user report.
var blockActions = []string{"block", "reblock"}

// Config controls loop behavior.
type Config struct {
	// Project selects the coordination page variant.
	Project string
	// CursorResetInterval is how often the event cursor is pulled back to
	// the floor so recently missed events are scanned again.
	CursorResetInterval time.Duration
	// FeedIdleTimeout bounds the wait for a relevant feed event; an idle
	// feed must not stall the poll loop forever.
	FeedIdleTimeout time.Duration
	// BatchSize is the log query page size used after the wider startup
	// scan.
	BatchSize int
	// ExperienceThreshold is the minimum defendant edit count for notices.
	ExperienceThreshold int
}

const (
	defaultCursorResetInterval = 250 * time.Second
	defaultFeedIdleTimeout     = 5 * time.Minute
	defaultExperienceThreshold = 10
	feedProgressEvery          = 25
)

// normalized returns the config with defaults applied.
func (c Config) normalized() Config {
	if c.Project == "" {
		c.Project = "VM"
	}
	if c.CursorResetInterval <= 0 {
		c.CursorResetInterval = defaultCursorResetInterval
	}
	if c.FeedIdleTimeout <= 0 {
		c.FeedIdleTimeout = defaultFeedIdleTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = domain.SteadyBatchSize
	}
	if c.ExperienceThreshold <= 0 {
		c.ExperienceThreshold = defaultExperienceThreshold
	}
	return c
}

// CaseRecorder persists closed reports for operators.
type CaseRecorder interface {
	RecordCase(ctx context.Context, record storage.CaseRecord) error
}

// Bot is the report clerk loop: it watches the administrative log, closes
// matching report sections, and notifies reported users.
type Bot struct {
	store    wiki.PageStore
	feed     wiki.Feed
	loader   *domain.EventLoader
	resolver *domain.Resolver
	notifier *domain.Notifier
	optOut   *domain.OptOutLists
	cases    CaseRecorder
	project  domain.Project
	cfg      Config
	tracer   trace.Tracer
	clock    func() time.Time
}

// NewBot assembles the loop from already-built collaborators. cases may be
// nil.
func NewBot(store wiki.PageStore, feed wiki.Feed, loader *domain.EventLoader, resolver *domain.Resolver, notifier *domain.Notifier, optOut *domain.OptOutLists, cases CaseRecorder, project domain.Project, cfg Config) *Bot {
	return &Bot{
		store:    store,
		feed:     feed,
		loader:   loader,
		resolver: resolver,
		notifier: notifier,
		optOut:   optOut,
		cases:    cases,
		project:  project,
		cfg:      cfg.normalized(),
		tracer:   otel.Tracer("vmbot"),
		clock:    time.Now,
	}
}

// Run executes polling cycles until ctx is canceled. Unexpected cycle errors
// are logged and the loop continues; only context cancellation stops it.
func (b *Bot) Run(ctx context.Context) error {
	bootMode := true
	lastReset := b.clock()

	for {
		if err := ctx.Err(); err != nil {
			log.Printf("loop stopping: %v", err)
			return nil
		}

		retry, err := b.cycle(ctx, bootMode)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("cycle failed: %v", err)
		}
		if bootMode {
			bootMode = false
			b.loader.SetLimit(b.cfg.BatchSize)
		}
		if retry {
			// A conflicting edit landed mid-cycle: rescan immediately
			// from a fresh snapshot instead of waiting for the feed.
			continue
		}

		if err := b.waitForActivity(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("feed wait: %v", err)
		}

		if b.clock().Sub(lastReset) > b.cfg.CursorResetInterval {
			b.loader.ResetCursor()
			lastReset = b.clock()
		}
	}
}

// cycle runs one resolution and notification pass. The returned retry flag
// asks the caller to start the next cycle without waiting for the feed.
func (b *Bot) cycle(ctx context.Context, bootMode bool) (retry bool, err error) {
	ctx, span := b.tracer.Start(ctx, "vmbot.cycle")
	defer span.End()

	if err := b.optOut.Refresh(ctx); err != nil {
		// Stale lists are safe to keep using; the next cycle retries.
		log.Printf("refresh opt-out lists: %v", err)
	}

	retry, err = b.resolvePass(ctx)
	if err != nil {
		return retry, err
	}
	if retry {
		return true, nil
	}

	if err := b.notifyPass(ctx, bootMode); err != nil {
		return false, err
	}
	return false, nil
}

// resolvePass loads fresh admin actions and closes the matching reports in
// one whole-page write.
func (b *Bot) resolvePass(ctx context.Context) (retry bool, err error) {
	ctx, span := b.tracer.Start(ctx, "vmbot.resolve")
	defer span.End()

	records, err := b.loader.LoadBlocks(ctx, blockActions)
	if err != nil {
		return false, err
	}
	protections, err := b.loader.LoadProtections(ctx)
	if err != nil {
		return false, err
	}
	records = append(records, protections...)
	if len(records) == 0 {
		return false, nil
	}

	snap, err := b.store.GetPage(ctx, b.project.Page)
	if err != nil {
		return false, fmt.Errorf("read %q: %w", b.project.Page, err)
	}
	if !snap.Exists {
		return false, fmt.Errorf("coordination page %q does not exist", b.project.Page)
	}

	preamble, sections := domain.SplitSections(snap.Text)
	res, err := b.resolver.Resolve(ctx, sections, records)
	if err != nil {
		return false, err
	}
	if res.Mutated == 0 {
		return false, nil
	}

	text := domain.Rebuild(preamble, res.Sections)
	outcome, err := domain.Commit(ctx, b.store, snap, text, res.Summary)
	if err != nil {
		return outcome == domain.CommitConflict || outcome == domain.CommitRetry, err
	}
	switch outcome {
	case domain.Committed:
		log.Printf("closed %d section(s) on %s", res.Mutated, b.project.Page)
		b.recordCases(ctx, res.Closed)
		return false, nil
	case domain.CommitConflict:
		log.Printf("edit conflict on %s, rescanning", b.project.Page)
		return true, nil
	case domain.CommitRetry:
		log.Printf("write to %s not saved, rescanning", b.project.Page)
		return true, nil
	default:
		return false, nil
	}
}

// recordCases journals the committed closings. Journal failures are logged,
// never propagated: the wiki edit already happened.
func (b *Bot) recordCases(ctx context.Context, records []domain.ActionRecord) {
	if b.cases == nil {
		return
	}
	for _, rec := range records {
		err := b.cases.RecordCase(ctx, storage.CaseRecord{
			Subject:  rec.Subject,
			Admin:    rec.Admin,
			Duration: rec.Duration,
			Reason:   rec.Reason,
			Project:  b.cfg.Project,
			ClosedAt: rec.Timestamp,
		})
		if err != nil {
			log.Printf("record case %q: %v", rec.Subject, err)
		}
	}
}

// notifyPass walks a fresh snapshot and messages eligible defendants.
func (b *Bot) notifyPass(ctx context.Context, bootMode bool) error {
	ctx, span := b.tracer.Start(ctx, "vmbot.notify")
	defer span.End()

	snap, err := b.store.GetPage(ctx, b.project.Page)
	if err != nil {
		return fmt.Errorf("read %q: %w", b.project.Page, err)
	}
	_, sections := domain.SplitSections(snap.Text)
	return b.notifier.Run(ctx, sections, bootMode)
}

// waitForActivity blocks until the feed reports something worth a rescan: a
// block or protection log entry, or a human edit of the coordination page.
// An idle feed gives up after the configured timeout so the log query still
// runs periodically.
func (b *Bot) waitForActivity(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, b.cfg.FeedIdleTimeout)
	defer cancel()

	count := 0
	for {
		change, err := b.feed.Next(waitCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return nil
			}
			return err
		}
		count++
		if count%feedProgressEvery == 0 {
			log.Printf("%d feed events since last cycle", count)
		}
		if relevantChange(change, b.project.Page) {
			return nil
		}
	}
}

// relevantChange reports whether a feed notice should trigger a rescan.
func relevantChange(change wiki.RecentChange, projectPage string) bool {
	if change.Type == "log" {
		switch change.LogType {
		case "block", "protect":
			return true
		}
		return false
	}
	if change.Type == "edit" && change.Title == projectPage && !change.Bot {
		return true
	}
	return false
}
