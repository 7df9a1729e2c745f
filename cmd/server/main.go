package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"pos-backend/internal/adapters/web"
	"pos-backend/internal/config"
	"pos-backend/internal/core"
	"pos-backend/internal/db"
	"pos-backend/internal/notify"
	"pos-backend/internal/pubsub"
	"pos-backend/internal/stock"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("configuration")
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{})
	}
	log := logger.WithField("app", "pos-backend")

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("server exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logrus.Entry) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	gateway := db.NewGateway(pool, cfg.DBNamePrefix)
	if err := gateway.EnsureCommons(ctx); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	if cfg.Debug {
		// pprof on the default mux, loopback only.
		go func() {
			addr := fmt.Sprintf("localhost:%d", cfg.DebugPort)
			log.WithField("addr", addr).Info("debug server listening")
			if err := http.ListenAndServe(addr, nil); err != nil {
				log.WithError(err).Warn("debug server stopped")
			}
		}()
	}

	slack := notify.NewSlackNotifier(cfg.SlackWebhookURL, log)

	// Event delivery chain: status row first, then the bus, with a
	// republisher sweeping undelivered events.
	deliveryStore := pubsub.NewDeliveryStore(gateway)
	writer := pubsub.NewKafkaWriter(cfg.KafkaBrokers)
	defer writer.Close()
	publisher := pubsub.NewPublisher(deliveryStore, writer, nil, slack, log)
	republisher := pubsub.NewRepublisher(deliveryStore, publisher,
		time.Duration(cfg.RepublishIntervalMinutes)*time.Minute,
		time.Duration(cfg.RepublishWindowHours)*time.Hour, log)
	go republisher.Run(ctx)

	alerts := stock.NewAlertHub(cfg.AlertCooldown(), slack, log)
	stocks := stock.NewService(gateway, alerts, log)

	scheduler := stock.NewScheduler(gateway, stocks, log)
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	// In-process subscribers. The stock consumer projects transaction logs
	// into stock movements; the journal consumers only acknowledge, since
	// the journal row is written synchronously at finalization. Acks go
	// straight to the delivery store unless a callback key is configured,
	// in which case they take the HTTP delivery-status route like any
	// out-of-process subscriber.
	dedupe := pubsub.NewDedupe(rdb, 0)
	var notifier pubsub.Notifier = pubsub.NewStoreNotifier(deliveryStore)
	if cfg.PubsubNotifyAPIKey != "" {
		notifier = pubsub.NewHTTPNotifier(cfg.NotifyBaseURL, cfg.PubsubNotifyAPIKey)
	}
	stockSub := stock.NewSubscriber(stocks, log)
	consumers := []*pubsub.Consumer{
		pubsub.NewConsumer(cfg.KafkaBrokers, core.TopicTranlog, "pos-stock", "stock",
			dedupe, notifier, stockSub.Handle, slack, log),
	}
	ackOnly := func(context.Context, pubsub.Event) error { return nil }
	for _, topic := range []string{core.TopicTranlog, core.TopicCashlog, core.TopicOpenCloseLog} {
		consumers = append(consumers, pubsub.NewConsumer(cfg.KafkaBrokers, topic, "pos-journal", "journal",
			dedupe, notifier, ackOnly, slack, log))
	}
	for _, c := range consumers {
		go func(c *pubsub.Consumer) {
			if err := c.Run(ctx); err != nil {
				log.WithError(err).Error("consumer stopped")
			}
		}(c)
	}

	accounts := core.NewAccountService(gateway, cfg.SecretKey, cfg.TokenExpiry(), log)
	handler := web.NewHandler(web.Deps{
		Gateway:        gateway,
		Accounts:       accounts,
		Publisher:      publisher,
		Delivery:       deliveryStore,
		Stocks:         stocks,
		Alerts:         alerts,
		Ops:            slack,
		Rounding:       core.Rounding(cfg.RoundMethodForDiscount),
		UseItemCache:   cfg.UseItemCache,
		ItemCacheTTL:   cfg.ItemCacheTTL(),
		NotifyAPIKey:   cfg.PubsubNotifyAPIKey,
		AllowedOrigins: cfg.AllowedOrigins,
		Log:            log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
