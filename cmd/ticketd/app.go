package main

import (
	"context"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/internal/audit"
	"github.com/MarkoPoloResearchLab/ticketengine/internal/config"
	"github.com/MarkoPoloResearchLab/ticketengine/internal/httpapi"
	"github.com/MarkoPoloResearchLab/ticketengine/internal/midtrans"
	"github.com/MarkoPoloResearchLab/ticketengine/internal/notify"
	"github.com/MarkoPoloResearchLab/ticketengine/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/availability"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/delivery"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/fanout"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/ledger"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/payment"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const redisPingTimeout = 3 * time.Second

type app struct {
	services httpapi.Services
	closers  []func() error
	logger   *zap.Logger
}

func (application *app) close() {
	for index := len(application.closers) - 1; index >= 0; index-- {
		if err := application.closers[index](); err != nil {
			application.logger.Warn("shutdown cleanup failed", zap.Error(err))
		}
	}
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	application := &app{logger: logger}
	db, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	application.closers = append(application.closers, cleanup)
	if err := prepareSchema(db); err != nil {
		application.close()
		return nil, fmt.Errorf("prepare schema: %w", err)
	}
	logger.Info("database ready", zap.String("driver", driver))
	store := gormstore.New(db)

	hub, signals, err := application.buildFanout(ctx, cfg)
	if err != nil {
		application.close()
		return nil, err
	}

	ledgerService, err := ledger.NewService(store.Ledger(), time.Now,
		ledger.WithOperationLogger(audit.NewZapOperationLogger(logger)))
	if err != nil {
		application.close()
		return nil, err
	}

	gateway, err := buildGateway(cfg, logger)
	if err != nil {
		application.close()
		return nil, err
	}
	verifier, err := payment.NewSignatureVerifier(cfg.MidtransServerKey)
	if err != nil {
		application.close()
		return nil, err
	}
	paymentService, err := payment.NewService(store.Payments(), ledgerService, gateway, verifier,
		payment.WithPurchasePolicy(cfg.PurchasePolicy()),
		payment.WithFanout(signals),
		payment.WithLogger(logger.Named("payment")),
	)
	if err != nil {
		application.close()
		return nil, err
	}

	policy, err := delivery.ParsePolicy(cfg.TransitionPolicy)
	if err != nil {
		application.close()
		return nil, err
	}
	deliveryService, err := delivery.NewService(store.Delivery(),
		delivery.WithPolicy(policy),
		delivery.WithFanout(signals),
		delivery.WithLogger(logger.Named("delivery")),
	)
	if err != nil {
		application.close()
		return nil, err
	}

	availabilityService, err := availability.NewService(store.Availability(), ledgerService, availability.WithFanout(signals))
	if err != nil {
		application.close()
		return nil, err
	}

	application.services = httpapi.Services{
		Ledger:       ledgerService,
		Payments:     paymentService,
		Delivery:     deliveryService,
		Availability: availabilityService,
		Hub:          hub,
	}
	return application, nil
}

// buildFanout always includes the in-process hub and adds Redis and Kafka when configured.
func (application *app) buildFanout(ctx context.Context, cfg config.Config) (*notify.Hub, fanout.Multi, error) {
	hub := notify.NewHub(notify.WithHubLogger(application.logger.Named("hub")))
	signals := fanout.Multi{hub}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		application.closers = append(application.closers, client.Close)
		signals = append(signals, notify.NewRedisPublisher(client, cfg.RedisChannel, application.logger.Named("redis")))
		application.logger.Info("redis fanout enabled", zap.String("addr", cfg.RedisAddr), zap.String("channel", cfg.RedisChannel))
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := notify.NewKafkaPublisher(notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), application.logger.Named("kafka"))
		application.closers = append(application.closers, publisher.Close)
		signals = append(signals, publisher)
		application.logger.Info("kafka fanout enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	return hub, signals, nil
}

func buildGateway(cfg config.Config, logger *zap.Logger) (payment.Gateway, error) {
	switch cfg.PaymentGateway {
	case config.GatewayMidtrans:
		return midtrans.NewClient(cfg.MidtransServerKey,
			midtrans.WithBaseURL(cfg.MidtransBaseURL),
			midtrans.WithLogger(logger.Named("midtrans")),
		)
	default:
		return payment.ManualGateway{}, nil
	}
}
