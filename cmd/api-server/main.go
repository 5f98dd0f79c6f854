package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campusmarket/db"
	"campusmarket/db/migrations"
	"campusmarket/internal/auth"
	"campusmarket/internal/config"
	"campusmarket/internal/handlers"
	"campusmarket/internal/logger"
	"campusmarket/internal/marketplace"
	"campusmarket/internal/middleware"
	"campusmarket/internal/notify"
	"campusmarket/internal/reset"
	"campusmarket/internal/ws"
	"campusmarket/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// логгер еще не настроен
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.Init(cfg.ServiceName, cfg.Env)

	dbConn, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot connect to DB")
	}
	defer dbConn.Close()
	dbConn.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbConn.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbConn.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := migrations.Run(dbConn.DB); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("cannot connect to redis")
	}

	store := db.NewStorage(dbConn)
	registry := ws.NewRegistry(logger.Component(log, "ws"))

	sms, external := channels(cfg.Notify, log)
	var dispatcherOpts []notify.Option
	if external != nil {
		types := make([]models.NotificationType, 0, len(cfg.Notify.ExternalTypes))
		for _, t := range cfg.Notify.ExternalTypes {
			types = append(types, models.NotificationType(t))
		}
		dispatcherOpts = append(dispatcherOpts, notify.WithExternal(external, store, types...))
	}
	dispatcher := notify.NewDispatcher(store, registry, logger.Component(log, "notify"), dispatcherOpts...)

	market := marketplace.NewService(marketplace.NewStore(store), dispatcher, logger.Component(log, "marketplace"),
		marketplace.WithAutoBid(cfg.Marketplace.AutoBid),
		marketplace.WithMatchRadius(cfg.Marketplace.MatchRadiusKm),
	)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	accounts := auth.NewService(store, tokens, logger.Component(log, "auth"))
	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		if err := accounts.EnsureAdmin(context.Background(), cfg.Admin.Email, cfg.Admin.Password); err != nil {
			log.Fatal().Err(err).Msg("cannot bootstrap admin")
		}
	}

	services := handlers.Services{
		Accounts:    accounts,
		Marketplace: market,
		Reset: reset.NewService(store, reset.NewRedisStore(rdb), sms,
			cfg.Reset.CodeTTL, cfg.Reset.TokenTTL, logger.Component(log, "reset")),
	}
	if sms != nil {
		batcher := notify.NewBatcher(sms, cfg.Notify.BatchDelay, logger.Component(log, "batch"))
		services.Broadcaster = notify.NewBroadcaster(store, batcher)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger.Component(log, "ratelimit"))
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 5m", limiter.Cleanup); err != nil {
		log.Fatal().Err(err).Msg("cannot schedule limiter cleanup")
	}
	scheduler.Start()
	defer scheduler.Stop()

	h := handlers.NewHandler(store, services, logger.Component(log, "http"), !cfg.IsProduction())
	hub := ws.NewHub(registry, store, tokens, logger.Component(log, "ws"))
	router := h.Router(handlers.RouterConfig{
		Verifier:      tokens,
		WebSocket:     hub,
		PublicLimiter: limiter,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", cfg.Server.Address).Msg("starting server")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		log.Info().Str("signal", s.String()).Msg("shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
		}
	}

	// вебсокеты перехвачены и Shutdown их не ждет
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

// channels builds the SMS sender, used by reset and broadcasts, and the external channel
// chosen for notifications. Either may be nil.
func channels(cfg config.NotifyConfig, log zerolog.Logger) (sms notify.Channel, external notify.Channel) {
	if s, err := notify.NewSMSSender(cfg.SMS.APIURL, cfg.SMS.APIKey, cfg.SMS.Sender); err == nil {
		sms = s
	} else {
		log.Warn().Err(err).Msg("sms channel disabled")
	}

	switch cfg.Channel {
	case "sms":
		external = sms
	case "whatsapp":
		wa, err := notify.NewWhatsAppSender(cfg.WhatsApp.AccessToken, cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.BaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("whatsapp channel disabled")
			break
		}
		external = wa
	}
	return sms, external
}
