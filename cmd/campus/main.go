package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Spok95/campus-community/internal/app"
	"github.com/Spok95/campus-community/internal/auth"
	"github.com/Spok95/campus-community/internal/authz"
	"github.com/Spok95/campus-community/internal/config"
	"github.com/Spok95/campus-community/internal/db"
	"github.com/Spok95/campus-community/internal/jobs"
	"github.com/Spok95/campus-community/internal/logging"
	"github.com/Spok95/campus-community/internal/notify"
	"github.com/Spok95/campus-community/internal/observability"
	"github.com/Spok95/campus-community/internal/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env, "campus")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Closer()
	logger := lg.Base.With(zap.String("version", version))
	svcLog := lg.For("service").With(zap.String("version", version))

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, version)
	if err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}

	if err := db.Migrate(ctx, database, logger); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	tg, err := notify.Connect(cfg.BotToken, cfg.ModeratorChatIDs, lg.For("notify"))
	if err != nil {
		// Moderator notifications are optional; the API runs without them.
		logger.Warn("telegram disabled", zap.Error(err))
	}

	store := db.NewStore(database)
	guard := authz.NewGuard(store)

	grants := auth.NewRoleGrants(cfg.AdminEmails, cfg.ModeratorEmails)
	if len(grants) == 0 {
		logger.Warn("no ADMIN_EMAILS or MODERATOR_EMAILS configured; groups cannot be reviewed")
	}
	if n, err := auth.ApplyRoleGrants(ctx, store, grants, time.Now().UTC(), lg.For("auth")); err != nil {
		logger.Fatal("role grants failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("existing accounts promoted", zap.Int("count", n))
	}
	opts := []service.Option{service.WithLocation(cfg.Location)}
	if tg != nil {
		opts = append(opts, service.WithNotifier(tg))
	}

	runner := jobs.New(ctx, lg.For("jobs"))
	if tg != nil && cfg.DigestInterval > 0 {
		runner.Every(cfg.DigestInterval, "pending_digest", jobs.PendingDigest(store, tg, cfg.Location))
	}

	router := app.NewRouter(app.Deps{
		Auth:     auth.NewService(store, auth.NewBcryptHasher(auth.DefaultCost), svcLog).WithRoleGrants(grants),
		Groups:   service.NewGroupService(store, guard, svcLog, opts...),
		Posts:    service.NewPostService(store, guard, svcLog, opts...),
		Feedback: service.NewFeedbackService(store, guard, svcLog, opts...),
		Sessions: auth.NewCookieStore(cfg.SessionSecret, cfg.Prod()),
		Ping:     func(ctx context.Context) error { return db.Ping(ctx, database) },
		LogLevel: lg.Level,
		Log:      lg.For("http"),
		Loc:      cfg.Location,
	})

	srv := app.StartHTTP(ctx, cfg.HTTPAddr, router, lg.For("http"))
	logger.Info("campus community started",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("env", cfg.Env),
		zap.Bool("telegram", tg != nil),
	)

	<-ctx.Done()
	logger.Info("shutting down")
	<-srv.Done()
	runner.Wait()
	closeDB(database, logger)
}

func closeDB(database *sql.DB, logger *zap.Logger) {
	if err := database.Close(); err != nil {
		logger.Warn("db close", zap.Error(err))
	}
}
