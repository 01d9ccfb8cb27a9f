// Command voicedesk runs the telephony voice-agent bridge: it answers
// provider webhooks, bridges media-stream audio to the real-time AI,
// books appointments, and places scheduled practice calls.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nimbletel/voicedesk/pkg/bridge/booking"
	"github.com/nimbletel/voicedesk/pkg/bridge/calendar"
	"github.com/nimbletel/voicedesk/pkg/bridge/config"
	"github.com/nimbletel/voicedesk/pkg/bridge/notify"
	"github.com/nimbletel/voicedesk/pkg/bridge/realtime"
	"github.com/nimbletel/voicedesk/pkg/bridge/scheduler"
	"github.com/nimbletel/voicedesk/pkg/bridge/server"
	"github.com/nimbletel/voicedesk/pkg/bridge/session"
	"github.com/nimbletel/voicedesk/pkg/bridge/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(context.Background(), logger); err != nil {
		logger.Error("voicedesk exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	loc, err := time.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		return fmt.Errorf("load business timezone: %w", err)
	}

	tools := booking.NewService(buildCalendar(ctx, cfg, logger), booking.Config{
		Location:          loc,
		BusinessStartHour: cfg.BusinessStartHour,
		BusinessEndHour:   cfg.BusinessEndHour,
		SlotDuration:      time.Duration(cfg.SlotDurationMinutes) * time.Minute,
		Buffer:            time.Duration(cfg.SlotBufferMinutes) * time.Minute,
		Logger:            logger,
	})

	dialer, err := realtime.NewDialer(realtime.Config{
		URL:            cfg.RealtimeURL,
		APIKey:         cfg.RealtimeAPIKey,
		Model:          cfg.RealtimeModel,
		ConnectTimeout: cfg.RealtimeConnect,
	})
	if err != nil {
		return fmt.Errorf("build ai dialer: %w", err)
	}

	srv, err := server.New(cfg, server.Dependencies{
		Store:    st,
		Tools:    tools,
		AI:       dialer,
		Notifier: buildNotifier(cfg, logger),
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	if cfg.SchedulerEnabled {
		origin, err := scheduler.NewTwilioOriginator(
			cfg.TwilioAccountSID,
			cfg.TwilioAuthToken,
			cfg.TwilioFromNumber,
			"https://"+cfg.PublicHost+"/voice",
			"https://"+cfg.PublicHost+"/voice/status",
		)
		if err != nil {
			return fmt.Errorf("build call originator: %w", err)
		}
		sched := scheduler.New(st, origin, scheduler.Config{
			Interval: cfg.SchedulerInterval,
			Logger:   logger,
		})
		go sched.Run(ctx)
		logger.Info("outbound scheduler enabled", "interval", cfg.SchedulerInterval)
	}

	httpSrv := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	listenErrCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "public_host", cfg.PublicHost)
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("voicedesk stopped")
	return nil
}

func buildStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.DatabaseDSN == "" {
		logger.Warn("no database configured, using in-memory store")
		return store.NewMemory(), nil
	}
	if err := store.Migrate(cfg.DatabaseDSN); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	pg, err := store.NewPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return pg, nil
}

// buildCalendar returns nil when no credentials are configured; the
// booking service then answers every calendar tool with a
// not-configured error instead of failing the call.
func buildCalendar(ctx context.Context, cfg config.Config, logger *slog.Logger) calendar.Gateway {
	oauthReady := cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" && cfg.GoogleRefreshToken != ""
	if !oauthReady && cfg.GoogleCredentialsFile == "" {
		logger.Warn("no calendar credentials configured, booking tools disabled")
		return nil
	}
	gw, err := calendar.NewGoogleGateway(ctx, calendar.GoogleConfig{
		CalendarID:      cfg.CalendarID,
		CredentialsFile: cfg.GoogleCredentialsFile,
		Timezone:        cfg.BusinessTimezone,
		ClientID:        cfg.GoogleClientID,
		ClientSecret:    cfg.GoogleClientSecret,
		RefreshToken:    cfg.GoogleRefreshToken,
	})
	if err != nil {
		logger.Error("calendar setup failed, booking tools disabled", "err", err)
		return nil
	}
	return gw
}

func buildNotifier(cfg config.Config, logger *slog.Logger) session.Notifier {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFromNumber == "" {
		logger.Warn("no sms credentials configured, post-call notifications disabled")
		return nil
	}
	sender, err := notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	if err != nil {
		logger.Error("sms setup failed, post-call notifications disabled", "err", err)
		return nil
	}

	var sent notify.SentStore = notify.NewMemorySentStore()
	if cfg.RedisAddr != "" {
		sent = notify.NewRedisSentStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	return notify.NewService(sender, sent, notify.Config{
		OwnerPhone: cfg.OwnerPhone,
		Logger:     logger,
	})
}
