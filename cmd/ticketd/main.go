package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MarkoPoloResearchLab/ticketengine/internal/config"
	"github.com/MarkoPoloResearchLab/ticketengine/internal/httpapi"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	flagConfig            = "config"
	flagDatabaseURL       = "database-url"
	flagListenAddr        = "listen-addr"
	flagAllowedOrigins    = "allowed-origins"
	flagJWTSigningKey     = "jwt-signing-key"
	flagJWTIssuer         = "jwt-issuer"
	flagJWTCookieName     = "jwt-cookie-name"
	flagPaymentGateway    = "payment-gateway"
	flagMidtransServerKey = "midtrans-server-key"
	flagMidtransBaseURL   = "midtrans-base-url"
	flagTicketPrice       = "ticket-price"
	flagMinimumPurchase   = "minimum-purchase"
	flagTransitionPolicy  = "transition-policy"
	flagRedisAddr         = "redis-addr"
	flagRedisChannel      = "redis-channel"
	flagKafkaBrokers      = "kafka-brokers"
	flagKafkaTopic        = "kafka-topic"
	flagRequestTimeout    = "request-timeout"
	configKeyPricingBands = "pricing_bands"
	envPrefix             = "TICKETD"
	defaultDatabaseURL    = "sqlite:///tmp/ticketengine.db"
)

func main() {
	if err := loadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "ticketd: %v\n", err)
		os.Exit(1)
	}
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ticketd: %v\n", err)
		os.Exit(1)
	}
}

// loadDotEnv reads .env from the working directory when one exists.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func newRootCommand() *cobra.Command {
	cfg := config.Config{}
	cmd := &cobra.Command{
		Use:           "ticketd",
		Short:         "Ticket economy and order lifecycle server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadServeConfig(cmd)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("logger init: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			app, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.close()
			return httpapi.Run(ctx, cfg, app.services, logger)
		},
	}

	cmd.PersistentFlags().String(flagConfig, "", "optional config file (yaml, json or toml)")
	cmd.PersistentFlags().String(flagDatabaseURL, defaultDatabaseURL, "postgres:// URL, sqlite:// URL or sqlite file path")

	cmd.Flags().String(flagListenAddr, "", "HTTP listen address")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	cmd.Flags().String(flagJWTSigningKey, "", "session JWT signing key (required)")
	cmd.Flags().String(flagJWTIssuer, "", "expected session JWT issuer")
	cmd.Flags().String(flagJWTCookieName, "", "session cookie name")
	cmd.Flags().String(flagPaymentGateway, config.GatewayManual, "payment gateway: manual or midtrans")
	cmd.Flags().String(flagMidtransServerKey, "", "Midtrans server key, also verifies notifications (required)")
	cmd.Flags().String(flagMidtransBaseURL, "", "Midtrans Core API base URL")
	cmd.Flags().Int64(flagTicketPrice, 0, "price per ticket")
	cmd.Flags().Int64(flagMinimumPurchase, 0, "minimum tickets per purchase")
	cmd.Flags().String(flagTransitionPolicy, "", "order transition policy: strict or permissive")
	cmd.Flags().String(flagRedisAddr, "", "Redis address for signal pub/sub (optional)")
	cmd.Flags().String(flagRedisChannel, "", "Redis pub/sub channel")
	cmd.Flags().String(flagKafkaBrokers, "", "comma-separated Kafka brokers for signals (optional)")
	cmd.Flags().String(flagKafkaTopic, "", "Kafka topic for signals")
	cmd.Flags().Duration(flagRequestTimeout, 0, "per-request timeout (e.g. 10s)")

	cmd.AddCommand(newMigrateCommand(), newAuditCommand(), newProfileCommand(), newTokenCommand())
	return cmd
}

// newViper binds every flag of cmd, the TICKETD_ environment and the optional config file.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var bindErr error
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if bindErr == nil {
			bindErr = v.BindPFlag(flag.Name, flag)
		}
	})
	if bindErr != nil {
		return nil, bindErr
	}
	if err := v.BindEnv(flagDatabaseURL, envPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, err
	}
	if configFile := strings.TrimSpace(v.GetString(flagConfig)); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return v, nil
}

func loadServeConfig(cmd *cobra.Command) (config.Config, error) {
	v, err := newViper(cmd)
	if err != nil {
		return config.Config{}, err
	}
	cfg := config.Config{
		ListenAddr:        strings.TrimSpace(v.GetString(flagListenAddr)),
		DatabaseURL:       strings.TrimSpace(v.GetString(flagDatabaseURL)),
		AllowedOrigins:    config.ParseList(v.GetString(flagAllowedOrigins)),
		SessionSigningKey: v.GetString(flagJWTSigningKey),
		SessionIssuer:     strings.TrimSpace(v.GetString(flagJWTIssuer)),
		SessionCookieName: strings.TrimSpace(v.GetString(flagJWTCookieName)),
		PaymentGateway:    strings.TrimSpace(v.GetString(flagPaymentGateway)),
		MidtransServerKey: strings.TrimSpace(v.GetString(flagMidtransServerKey)),
		MidtransBaseURL:   strings.TrimSpace(v.GetString(flagMidtransBaseURL)),
		TicketPrice:       v.GetInt64(flagTicketPrice),
		MinimumPurchase:   v.GetInt64(flagMinimumPurchase),
		TransitionPolicy:  strings.TrimSpace(v.GetString(flagTransitionPolicy)),
		RedisAddr:         strings.TrimSpace(v.GetString(flagRedisAddr)),
		RedisChannel:      strings.TrimSpace(v.GetString(flagRedisChannel)),
		KafkaBrokers:      config.ParseList(v.GetString(flagKafkaBrokers)),
		KafkaTopic:        strings.TrimSpace(v.GetString(flagKafkaTopic)),
		RequestTimeout:    v.GetDuration(flagRequestTimeout),
	}
	if v.IsSet(configKeyPricingBands) {
		var inputs []config.PricingBandInput
		if err := v.UnmarshalKey(configKeyPricingBands, &inputs); err != nil {
			return config.Config{}, fmt.Errorf("%w: pricing bands: %v", config.ErrInvalidConfig, err)
		}
		bands, err := config.ParsePricingBands(inputs)
		if err != nil {
			return config.Config{}, err
		}
		cfg.PricingBands = bands
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func databaseURL(cmd *cobra.Command) (string, error) {
	v, err := newViper(cmd)
	if err != nil {
		return "", err
	}
	dsn := strings.TrimSpace(v.GetString(flagDatabaseURL))
	if dsn == "" {
		dsn = defaultDatabaseURL
	}
	return dsn, nil
}
