package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/CDeX-Labs/CDeX-Web-Client/config"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/api"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/auth"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/feed"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/invitations"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/kafka"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/metrics"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/notify"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/redis"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/submissions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

func main() {
	devMode := flag.Bool("dev", false, "load .env and log to the console")
	submitFile := flag.String("submit", "", "source file to submit to the configured contest")
	submitRepo := flag.Bool("submit-repo", false, "create and submit the contest repository")
	language := flag.String("language", "go", "language of the submission")
	respond := flag.String("respond", "", "invitation id to respond to")
	accept := flag.Bool("accept", true, "accept (true) or reject (false) the invitation given with -respond")
	flag.Parse()

	cfg, err := config.InitConfig(*devMode)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger := setupLogger(cfg, *devMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	notifier := notify.NewLogNotifier(logger)

	var (
		persister   auth.Persister
		detailCache invitations.DetailCache
	)
	if cfg.Redis.Host != "" {
		rc, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rc.Close()
		persister = redis.NewSessionPersister(rc, cfg.App.Name)
		detailCache = redis.NewDetailCache(rc)
	}

	httpClient := &http.Client{Timeout: cfg.API.Timeout}

	session := auth.NewSession(auth.SessionOptions{
		BaseURL:             cfg.API.BaseURL,
		HTTPClient:          httpClient,
		AccessTokenLifetime: cfg.Auth.AccessTokenLifetime,
		BridgeTokenLifetime: cfg.Auth.BridgeTokenLifetime,
		Notifier:            notifier,
		Navigator:           notifier,
		Persister:           persister,
		Metrics:             m,
		Logger:              logger,
	})

	if err := startSession(ctx, cfg, session); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start session")
	}
	session.StartValidityCheck(ctx, cfg.Auth.ValidityCheck)

	var limiter *rate.Limiter
	if cfg.API.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.API.RequestsPerSecond), cfg.API.Burst)
	}

	dispatcher := api.NewDispatcher(api.Options{
		BaseURL:    cfg.API.BaseURL,
		HTTPClient: httpClient,
		Tokens:     session,
		Notifier:   notifier,
		Limiter:    limiter,
		Metrics:    m,
		Logger:     logger,
	})

	subs := submissions.NewStore(submissions.Options{
		Dispatcher:  dispatcher,
		OwnerID:     session.UserID,
		SettleDelay: cfg.Submissions.SettleDelay,
		Notifier:    notifier,
		Metrics:     m,
		Logger:      logger,
	})
	defer subs.Close()

	invites := invitations.NewStore(invitations.Options{
		Dispatcher: dispatcher,
		Cache:      detailCache,
		DetailTTL:  cfg.Invitations.DetailTTL,
		Workers:    cfg.Invitations.EnhanceWorkers,
		Notifier:   notifier,
		Metrics:    m,
		Logger:     logger,
	})
	defer invites.Close()

	subs.Subscribe(func(list []submissions.Submission) {
		view := submissions.Project(list, submissions.FilterAll, submissions.SortByDate, submissions.Desc)
		pending := submissions.Project(list, submissions.FilterPending, submissions.SortByDate, submissions.Desc)
		logger.Info().Int("total", len(view)).Int("pending", len(pending)).Msg("Submissions updated")
	})
	invites.SubscribeEnhanced(func(list []invitations.Enhanced) {
		pending := 0
		for _, inv := range list {
			if inv.IsPending() {
				pending++
			}
		}
		logger.Info().Int("total", len(list)).Int("pending", pending).Msg("Invitations updated")
	})

	go serveMetrics(ctx, cfg.Metrics.Addr, reg, session, logger)

	contestID := cfg.Submissions.ContestID
	if err := subs.Fetch(ctx, contestID); err != nil {
		logger.Error().Err(err).Msg("Initial submissions fetch failed")
	}
	if err := subs.FetchRepositories(ctx); err != nil {
		logger.Error().Err(err).Msg("Initial repositories fetch failed")
	}
	if err := invites.Fetch(ctx); err != nil {
		logger.Error().Err(err).Msg("Initial invitations fetch failed")
	} else if _, err := invites.Enhance(ctx); err != nil {
		logger.Error().Err(err).Msg("Invitation enhancement failed")
	}

	if *respond != "" {
		if err := invites.Respond(ctx, *respond, *accept); err == nil {
			_, _ = invites.Enhance(ctx)
		}
	}

	if *submitFile != "" || *submitRepo {
		if contestID == "" {
			logger.Fatal().Msg("CDEX_CONTEST_ID is required to submit")
		}
		submit(ctx, subs, contestID, *language, *submitFile, *submitRepo, logger)
	}

	if cfg.Socket.URL != "" && contestID != "" {
		socket := feed.NewSocket(feed.SocketOptions{
			URL:       cfg.Socket.URL,
			ContestID: contestID,
			Tokens:    session,
			Sink:      subs,
			Metrics:   m,
			Logger:    logger,
		})
		go func() {
			if err := socket.Run(ctx); err != nil {
				logger.Warn().Err(err).Msg("Socket feed ended")
			}
		}()
	}

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, kafka.Topics(), logger)
		kafka.NewHandlers(subs, session.UserID, m, logger).RegisterAll(consumer)
		consumer.Start()
		defer consumer.Stop()
	}

	logger.Info().
		Str("api", cfg.API.BaseURL).
		Str("userId", session.UserID()).
		Str("email", session.Email()).
		Str("contestId", contestID).
		Msg("Client running")

	<-ctx.Done()
	logger.Info().Msg("Shutting down")
}

func setupLogger(cfg *config.AppConfig, devMode bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var logger zerolog.Logger
	if devMode {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	logger = logger.With().Timestamp().Str("service", cfg.App.Name).Logger()
	log.Logger = logger
	return logger
}

// startSession restores a persisted session, then falls back to bridge
// tokens and finally to a sign-in with the configured identity.
func startSession(ctx context.Context, cfg *config.AppConfig, session *auth.Session) error {
	restored, err := session.Restore(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Could not restore session")
	}
	if restored {
		return nil
	}

	if cfg.Auth.BridgeAccessToken != "" {
		return session.AdoptBridgeTokens(ctx, cfg.Auth.BridgeAccessToken, cfg.Auth.BridgeRefreshToken)
	}

	if cfg.Identity.Provider == "" {
		return errors.New("no session to restore and no identity configured")
	}
	return session.SignIn(ctx, auth.Identity{
		Provider:            cfg.Identity.Provider,
		ID:                  cfg.Identity.ID,
		Email:               cfg.Identity.Email,
		Name:                cfg.Identity.Name,
		Image:               cfg.Identity.Image,
		ProviderAccessToken: cfg.Identity.ProviderAccessToken,
	})
}

func submit(ctx context.Context, subs *submissions.Store, contestID, language, path string, repo bool, logger zerolog.Logger) {
	var (
		s   submissions.Submission
		err error
	)
	if repo {
		s, err = subs.SubmitRepository(ctx, contestID, language)
	} else {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			logger.Error().Err(readErr).Str("path", path).Msg("Failed to read submission")
			return
		}
		s, err = subs.SubmitFiles(ctx, contestID, language, []api.File{{
			Name: filepath.Base(path),
			Data: data,
		}})
	}
	if err != nil {
		logger.Error().Err(err).Msg("Submission failed")
		return
	}
	logger.Info().Str("submissionId", s.ID).Msg("Submitted")
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, session *auth.Session, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !session.SignedIn() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"signed_out"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("Metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("Metrics server failed")
	}
}
