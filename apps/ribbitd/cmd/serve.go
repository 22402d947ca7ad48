package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	echoapi "github.com/plaguebrands/ribbit/api/echo"
	"github.com/plaguebrands/ribbit/cache"
	redisnonce "github.com/plaguebrands/ribbit/cache/redis"
	"github.com/plaguebrands/ribbit/config"
	"github.com/plaguebrands/ribbit/internal/discord"
	"github.com/plaguebrands/ribbit/internal/metrics"
	"github.com/plaguebrands/ribbit/internal/nft"
	"github.com/plaguebrands/ribbit/internal/server"
	"github.com/plaguebrands/ribbit/mongodb"
	"github.com/plaguebrands/ribbit/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, err := mongodb.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to disconnect from MongoDB")
		}
	}()
	db := mongoClient.Database(cfg.MongoDBName)

	users, err := mongodb.NewUserRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize user repository")
	}
	nftStore := mongodb.NewNFTStore(db)
	reviews := mongodb.NewReviewStore(db)

	var nonces cache.NonceStore
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		nonces = redisnonce.NewNonceStore(rdb, "ribbit")
	} else {
		memStore := cache.NewMemoryNonceStore()
		defer memStore.Stop()
		nonces = memStore
		log.Info().Msg("Using in-memory nonce store; set REDIS_ADDR when running more than one replica")
	}

	discordClient := discord.New(discord.Config{
		ClientID:     cfg.DiscordClientID,
		ClientSecret: cfg.DiscordClientSecret,
		GuildID:      cfg.DiscordGuildID,
		HolderRoleID: cfg.DiscordHolderRoleID,
	})
	oracle := nft.New(nft.Config{
		BaseURL:   cfg.AlchemyBaseURL,
		APIKey:    cfg.AlchemyAPIKey,
		Contracts: []string{cfg.PlagueContract, cfg.ExodusContract},
	})

	sessions, err := services.NewSessionService(
		cfg.SessionSecret, cfg.AppURL,
		time.Duration(cfg.SessionTTLHours)*time.Hour,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize session service")
	}
	identity := services.NewIdentityService(users)
	auth := services.NewAuthService(nonces, oracle, discordClient, identity, sessions, nftStore)

	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)

	authAPI := echoapi.NewAuthAPI(auth, sessions, reviews, cfg.AppURL)
	srv := server.NewHTTPServer(cfg, authAPI)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("Ribbit server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

func setupLogging(cfg *config.ServerConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("configured_level", cfg.LogLevel).Msg("Invalid log level in config, defaulting to info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
