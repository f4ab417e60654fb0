package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/xqbot/vmbot/internal/services/vmbot/domain"
	"github.com/xqbot/vmbot/internal/services/vmbot/locale"
	"github.com/xqbot/vmbot/internal/services/vmbot/storage"
	vmsqlite "github.com/xqbot/vmbot/internal/services/vmbot/storage/sqlite"
	"github.com/xqbot/vmbot/internal/wiki/feed"
	"github.com/xqbot/vmbot/internal/wiki/mediawiki"
)

// RuntimeConfig controls bot startup, dependencies, and loop behavior.
type RuntimeConfig struct {
	Port                int
	APIEndpoint         string
	FeedEndpoint        string
	FeedWiki            string
	Username            string
	Password            string
	Project             string
	DBPath              string
	OptOutTTL           time.Duration
	CursorResetInterval time.Duration
	FeedIdleTimeout     time.Duration
	BatchSize           int
	ExperienceThreshold int
}

const (
	defaultBotPort   = 8091
	defaultBotDB     = "data/vmbot.db"
	defaultOptOutTTL = 6 * time.Hour
)

// Run starts the bot's runtime dependencies and the polling loop.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.APIEndpoint) == "" {
		return fmt.Errorf("api endpoint is required")
	}
	if strings.TrimSpace(cfg.FeedEndpoint) == "" {
		return fmt.Errorf("feed endpoint is required")
	}
	if strings.TrimSpace(cfg.Username) == "" {
		return fmt.Errorf("bot username is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultBotPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultBotDB
	}
	if cfg.OptOutTTL <= 0 {
		cfg.OptOutTTL = defaultOptOutTTL
	}
	projectKey := strings.TrimSpace(cfg.Project)
	if projectKey == "" {
		projectKey = "VM"
	}
	project, ok := domain.Projects[projectKey]
	if !ok {
		return fmt.Errorf("unknown project page %q", projectKey)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	journal, err := vmsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open journal store: %w", err)
	}
	defer func() {
		if closeErr := journal.Close(); closeErr != nil {
			log.Printf("close journal store: %v", closeErr)
		}
	}()
	logJournalTail(ctx, journal)

	client, err := mediawiki.NewClient(cfg.APIEndpoint, cfg.Username, cfg.Password)
	if err != nil {
		return fmt.Errorf("build api client: %w", err)
	}
	if err := client.Login(ctx); err != nil {
		return fmt.Errorf("log in as %q: %w", cfg.Username, err)
	}

	stream, err := feed.Dial(ctx, cfg.FeedEndpoint, cfg.FeedWiki)
	if err != nil {
		return fmt.Errorf("connect change feed: %w", err)
	}
	defer func() {
		if closeErr := stream.Close(); closeErr != nil {
			log.Printf("close change feed: %v", closeErr)
		}
	}()

	loopConfig := Config{
		Project:             projectKey,
		CursorResetInterval: cfg.CursorResetInterval,
		FeedIdleTimeout:     cfg.FeedIdleTimeout,
		BatchSize:           cfg.BatchSize,
		ExperienceThreshold: cfg.ExperienceThreshold,
	}.normalized()

	printer := locale.NewPrinter()
	loader := domain.NewEventLoader(client, printer)
	resolver := domain.NewResolver(client, printer, project.HeadNote)
	optOut := domain.NewOptOutLists(client, cfg.OptOutTTL, nil)
	seen := domain.NewSeenSet(50)
	notifier := domain.NewNotifier(client, client, optOut, seen,
		newJournalNoticeRecorder(journal, projectKey),
		projectKey, project, loopConfig.ExperienceThreshold)

	bot := NewBot(client, stream, loader, resolver, notifier, optOut, journal, project, loopConfig)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("vmbot.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("clerking %s, health server listening at %v", project.Page, listener.Addr())
	return bot.Run(ctx)
}

// journalNoticeRecorder adapts the journal store to the notifier's recorder
// interface, stamping each notice with the project variant.
type journalNoticeRecorder struct {
	journal storage.Journal
	project string
}

func newJournalNoticeRecorder(journal storage.Journal, project string) *journalNoticeRecorder {
	return &journalNoticeRecorder{journal: journal, project: project}
}

func (r *journalNoticeRecorder) RecordNotice(ctx context.Context, notice domain.Notice) error {
	if r == nil || r.journal == nil {
		return nil
	}
	return r.journal.RecordNotice(ctx, storage.NoticeRecord{
		Defendant:     notice.Defendant,
		Accuser:       notice.Accuser,
		SignatureTime: notice.SignatureTime,
		Section:       notice.Section,
		Project:       r.project,
	})
}

// logJournalTail reports the journal's latest entries at startup so the
// operator can see where the previous run left off.
func logJournalTail(ctx context.Context, journal storage.Journal) {
	cases, err := journal.ListCases(ctx, 1)
	switch {
	case err != nil:
		log.Printf("read case journal: %v", err)
	case len(cases) > 0:
		log.Printf("last closed case: %s by %s at %s",
			cases[0].Subject, cases[0].Admin, cases[0].ClosedAt.Format(time.RFC3339))
	}
	notices, err := journal.ListNotices(ctx, 1)
	switch {
	case err != nil:
		log.Printf("read notice journal: %v", err)
	case len(notices) > 0:
		log.Printf("last talk-page notice: %s at %s",
			notices[0].Defendant, notices[0].SentAt.Format(time.RFC3339))
	}
}
