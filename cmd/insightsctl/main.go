package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-inventory-insights/internal/app"
	"go-inventory-insights/internal/config"
	"go-inventory-insights/internal/model"
	"go-inventory-insights/internal/ws"
	"go-inventory-insights/pkg/database"
	"go-inventory-insights/pkg/jwt"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	storeFlag    string
	productFlags []string
	roleFlag     string
	userFlag     string
	ttlFlag      time.Duration
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "insightsctl",
		Short:         "Operate the inventory insights engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	warmup := &cobra.Command{
		Use:   "warmup",
		Short: "Recompute every store's most recently sold products",
		RunE:  runWarmup,
	}

	recompute := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute predictions for products of one store",
		RunE:  runRecompute,
	}
	recompute.Flags().StringVar(&storeFlag, "store", "", "store ID")
	recompute.Flags().StringSliceVar(&productFlags, "product", nil, "product ID, repeatable")
	_ = recompute.MarkFlagRequired("store")
	_ = recompute.MarkFlagRequired("product")

	purge := &cobra.Command{
		Use:   "purge-notifications",
		Short: "Delete notifications past their expiry",
		RunE:  runPurge,
	}

	token := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for local testing",
		RunE:  runToken,
	}
	token.Flags().StringVar(&storeFlag, "store", "", "store ID, empty for an author token")
	token.Flags().StringVar(&userFlag, "user", "", "user ID, random when empty")
	token.Flags().StringVar(&roleFlag, "role", "owner", "role claim")
	token.Flags().DurationVar(&ttlFlag, "ttl", 24*time.Hour, "token lifetime")

	root.AddCommand(warmup, recompute, purge, token)
	return root
}

// openServices builds the service graph with events discarded, since the CLI
// has no connected clients.
func openServices() (*app.Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectDB(database.Options{DSN: cfg.DSN()})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	rdb, err := app.OpenRedis(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return app.NewServices(cfg, db, rdb, ws.Nop{}), nil
}

func runWarmup(cmd *cobra.Command, _ []string) error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	start := time.Now()
	if err := svc.Predictions.Warmup(cmd.Context()); err != nil {
		return err
	}
	log.Info().Dur("took", time.Since(start)).Msg("warmup finished")
	return nil
}

func runRecompute(cmd *cobra.Command, _ []string) error {
	storeID, err := uuid.Parse(storeFlag)
	if err != nil {
		return fmt.Errorf("invalid --store: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(productFlags))
	for _, raw := range productFlags {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid --product %q: %w", raw, err)
		}
		ids = append(ids, id)
	}

	svc, err := openServices()
	if err != nil {
		return err
	}
	res := svc.Predictions.BatchRecompute(cmd.Context(), storeID, ids)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d of %d products failed", len(res.Failed), len(ids))
	}
	return nil
}

func runPurge(cmd *cobra.Command, _ []string) error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	n, err := svc.Notifications.PurgeExpired(cmd.Context())
	if err != nil {
		return err
	}
	log.Info().Int64("deleted", n).Msg("expired notifications purged")
	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	storeID := uuid.Nil
	if storeFlag != "" {
		if storeID, err = uuid.Parse(storeFlag); err != nil {
			return fmt.Errorf("invalid --store: %w", err)
		}
	} else {
		// only authors may hold a token without a store
		if cmd.Flags().Changed("role") && roleFlag != jwt.RoleAuthor {
			return fmt.Errorf("--role %q requires --store", roleFlag)
		}
		roleFlag = jwt.RoleAuthor
	}
	userID := uuid.New()
	if userFlag != "" {
		if userID, err = uuid.Parse(userFlag); err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
	}

	tok, err := jwt.NewVerifier(cfg.JWTSecret).GenerateToken(userID, storeID, roleFlag, ttlFlag)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
