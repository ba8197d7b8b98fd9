package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang-stock-valuation/internal/entity"
	"golang-stock-valuation/internal/tracker/delivery/consumer"
	delivery "golang-stock-valuation/internal/tracker/delivery/http"
	"golang-stock-valuation/internal/tracker/dto"
	"golang-stock-valuation/internal/tracker/repository"
	"golang-stock-valuation/internal/tracker/service"
	"golang-stock-valuation/internal/tracker/strategy"
	"golang-stock-valuation/pkg/common"
	"golang-stock-valuation/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the scheduler, the cycle consumer and the HTTP API",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath, true)
	if err != nil {
		log.Fatalf("Failed to start tracker: %v", err)
	}
	defer a.Close()
	cfg := a.cfg
	appLogger := a.logger

	appLogger.Info("Starting Valuation Tracker", logger.Field("name", cfg.App.Name))

	if err := a.redis.EnsureGroup(ctx, common.RedisStreamTrackingCycle, common.RedisStreamGroup); err != nil {
		appLogger.Fatal("Failed to create consumer group", logger.ErrorField(err))
	}

	schedulerSvc, err := service.NewSchedulerService(service.SchedulerConfig{
		Cron:     cfg.Tracker.Cron,
		Users:    cfg.Tracker.Users,
		Location: a.location,
	}, repository.NewCycleStreamRepository(a.redis.Client, cfg.Redis.StreamMaxLen), appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize scheduler", logger.ErrorField(err))
	}
	go schedulerSvc.Start(ctx)

	strategies := []strategy.CycleStrategy{
		strategy.NewScheduledCycleStrategy(appLogger, a.tracking, cfg.Tracker.CycleTimeout),
		strategy.NewManualCycleStrategy(appLogger, a.tracking, cfg.Tracker.CycleTimeout),
	}
	cycleExecutor := consumer.NewCycleExecutor(consumer.CycleExecutorConfig{
		MaxIdleDuration: cfg.Tracker.RedisStreamCycleMaxIdleDuration,
		MaxRetry:        cfg.Tracker.RedisStreamCycleMaxRetry,
	}, a.redis.Client, strategies, a.notifier, appLogger)
	redisConsumer := consumer.NewRedisConsumer(cfg, a.redis.Client, cycleExecutor, appLogger)
	redisConsumer.Start(ctx)

	e := echo.New()
	e.HideBanner = true

	apiV1 := e.Group("/api/v1")
	usersGroup := apiV1.Group("/users")
	delivery.NewLedgerHandler(a.ledger, appLogger).RegisterRoutes(usersGroup)
	delivery.NewCycleHandler(schedulerSvc, appLogger).RegisterRoutes(usersGroup)
	delivery.NewValuationHandler(a.valuationRepo, appLogger).RegisterRoutes(apiV1.Group("/valuations"))

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down tracker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.ErrorField(err))
	}
	redisConsumer.Stop()

	appLogger.Info("Tracker exiting")
}

var (
	runUser    string
	runForce   bool
	runMarkets string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs one tracking cycle in the foreground and prints the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		markets, err := entity.ParseMarkets(runMarkets)
		if err != nil {
			return err
		}

		a, err := newApp(ctx, configPath, false)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.tracking.RunCycle(ctx, dto.RunCycleRequest{
			CycleID: uuid.New(),
			UserID:  runUser,
			Force:   runForce,
			Markets: markets,
			Trigger: dto.TriggerManual,
		})
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

var (
	recordUser   string
	recordSymbol string
	recordName   string
	recordMarket string
	recordAction string
	recordPrice  string
	recordShares int64
	recordDate   string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Records a buy or sell in the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		price, err := decimal.NewFromString(recordPrice)
		if err != nil {
			return fmt.Errorf("invalid price %q: %w", recordPrice, err)
		}

		a, err := newApp(cmd.Context(), configPath, false)
		if err != nil {
			return err
		}
		defer a.Close()

		tradeDate := time.Now().In(a.location)
		if recordDate != "" {
			tradeDate, err = time.ParseInLocation(time.DateOnly, recordDate, a.location)
			if err != nil {
				return fmt.Errorf("invalid date %q: %w", recordDate, err)
			}
		}

		transaction, err := a.ledger.Record(cmd.Context(), dto.RecordTransactionRequest{
			UserID:    recordUser,
			Symbol:    recordSymbol,
			Name:      recordName,
			Market:    entity.Market(strings.ToUpper(recordMarket)),
			Action:    entity.Action(strings.ToLower(recordAction)),
			Price:     price,
			Shares:    recordShares,
			TradeDate: tradeDate,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Recorded %s %d %s (%s) at %s, id %d\n",
			transaction.Action, transaction.Shares, transaction.Symbol, transaction.Market, transaction.Price.String(), transaction.ID)
		return nil
	},
}

var (
	holdingsUser    string
	holdingsMarkets string
)

var holdingsCmd = &cobra.Command{
	Use:   "holdings",
	Short: "Lists open positions aggregated from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		markets, err := entity.ParseMarkets(holdingsMarkets)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), configPath, false)
		if err != nil {
			return err
		}
		defer a.Close()

		holdings, err := a.ledger.HoldingsFor(cmd.Context(), dto.GetHoldingsParam{UserID: holdingsUser, Markets: markets})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tNAME\tMARKET\tSHARES\tAVG COST\tTOTAL COST")
		for _, h := range holdings {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", h.Symbol, h.Name, h.Market, h.NetShares, h.AvgCost.StringFixed(3), h.TotalCost.StringFixed(2))
		}
		return w.Flush()
	},
}

// @title Valuation Tracker API
// @version 1.0
// @description Ledger, valuation history and manual tracking cycles.
// @BasePath /api/v1
func main() {
	rootCmd := &cobra.Command{Use: "tracker", SilenceUsage: true}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config-tracker.yaml", "Path to the configuration file")

	runCmd.Flags().StringVarP(&runUser, "user", "u", "default", "User whose holdings are tracked")
	runCmd.Flags().BoolVarP(&runForce, "force", "f", false, "Run even when every market is closed")
	runCmd.Flags().StringVarP(&runMarkets, "market", "m", "", "Comma separated markets to track (default all)")

	recordCmd.Flags().StringVarP(&recordUser, "user", "u", "default", "Owner of the trade")
	recordCmd.Flags().StringVarP(&recordSymbol, "symbol", "s", "", "Symbol")
	recordCmd.Flags().StringVarP(&recordName, "name", "n", "", "Display name")
	recordCmd.Flags().StringVarP(&recordMarket, "market", "m", string(entity.MarketCNA), "Market (CN_A, HK, US, FUND)")
	recordCmd.Flags().StringVarP(&recordAction, "action", "a", string(entity.ActionBuy), "buy or sell")
	recordCmd.Flags().StringVarP(&recordPrice, "price", "p", "", "Price per share")
	recordCmd.Flags().Int64Var(&recordShares, "shares", 0, "Number of shares")
	recordCmd.Flags().StringVarP(&recordDate, "date", "d", "", "Trade date YYYY-MM-DD (default today)")
	_ = recordCmd.MarkFlagRequired("symbol")
	_ = recordCmd.MarkFlagRequired("price")
	_ = recordCmd.MarkFlagRequired("shares")

	holdingsCmd.Flags().StringVarP(&holdingsUser, "user", "u", "default", "Owner of the holdings")
	holdingsCmd.Flags().StringVarP(&holdingsMarkets, "market", "m", "", "Comma separated markets (default all)")

	rootCmd.AddCommand(serveCmd, runCmd, recordCmd, holdingsCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing tracker CLI: %s\n", err)
		os.Exit(1)
	}
}
