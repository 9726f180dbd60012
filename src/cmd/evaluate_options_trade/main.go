package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jiaming2012/options-screener/src/cmd/evaluate_options_trade/run"
	"github.com/jiaming2012/options-screener/src/eventmodels"
	"github.com/jiaming2012/options-screener/src/logger"
	"github.com/jiaming2012/options-screener/src/utils"
)

var runCmd = &cobra.Command{
	Use:   "go run src/cmd/evaluate_options_trade/main.go --watchlist-file earnings.csv",
	Short: "Screen earnings candidates for a short strangle",
	Run: func(cmd *cobra.Command, args []string) {
		logLevel, err := cmd.Flags().GetString("log-level")
		if err != nil {
			log.Fatalf("error getting log-level: %v", err)
		}

		if err := logger.SetupLogger(logLevel); err != nil {
			log.Fatalf("error setting up logger: %v", err)
		}

		goEnv, err := cmd.Flags().GetString("go-env")
		if err != nil {
			log.Fatalf("error getting go-env: %v", err)
		}

		envDir, err := cmd.Flags().GetString("env-dir")
		if err != nil {
			log.Fatalf("error getting env-dir: %v", err)
		}

		configPath, err := cmd.Flags().GetString("config")
		if err != nil {
			log.Fatalf("error getting config: %v", err)
		}

		var runArgs run.RunArgs
		if runArgs.Symbol, err = cmd.Flags().GetString("symbol"); err != nil {
			log.Fatalf("error getting symbol: %v", err)
		}

		if runArgs.WatchlistFile, err = cmd.Flags().GetString("watchlist-file"); err != nil {
			log.Fatalf("error getting watchlist-file: %v", err)
		}

		if runArgs.Weekday, err = cmd.Flags().GetString("weekday"); err != nil {
			log.Fatalf("error getting weekday: %v", err)
		}

		if runArgs.NoTradingHours, err = cmd.Flags().GetBool("no-trading-hours"); err != nil {
			log.Fatalf("error getting no-trading-hours: %v", err)
		}

		if runArgs.Paper, err = cmd.Flags().GetBool("paper"); err != nil {
			log.Fatalf("error getting paper: %v", err)
		}

		if runArgs.CSVOut, err = cmd.Flags().GetString("csv-out"); err != nil {
			log.Fatalf("error getting csv-out: %v", err)
		}

		if runArgs.DESOut, err = cmd.Flags().GetString("des-out"); err != nil {
			log.Fatalf("error getting des-out: %v", err)
		}

		if err := utils.InitEnvironmentVariables(envDir, goEnv); err != nil {
			log.Warnf("environment file not loaded: %v", err)
		}

		cfg, err := utils.LoadScreenerConfig(configPath, !cmd.Flags().Changed("config"))
		if err != nil {
			log.Fatalf("error loading config: %v", err)
		}

		utils.ApplyEnvironment(cfg)

		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid config: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		otelShutdown, err := utils.SetupOTelSDK(ctx, "evaluate-options-trade")
		if err != nil {
			log.Fatalf("failed to setup otel sdk: %v", err)
		}

		result, err := run.Run(ctx, cfg, runArgs, os.Stdout)

		if shutdownErr := otelShutdown(context.Background()); shutdownErr != nil {
			log.Warnf("otel shutdown: %v", shutdownErr)
		}

		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Warnf("run cancelled: %v", err)
				os.Exit(130)
			}

			log.Fatalf("Error: %v", err)
		}

		log.Infof("accepted %d, rejected %d, errored %d",
			result.Summary[eventmodels.VerdictAccepted],
			result.Summary[eventmodels.VerdictRejected],
			result.Summary[eventmodels.VerdictError])
	},
}

func main() {
	runCmd.PersistentFlags().String("symbol", "", "The stock symbol to evaluate options for.")
	runCmd.PersistentFlags().String("watchlist-file", "earnings.csv", "Path to the watchlist file.")
	runCmd.PersistentFlags().String("weekday", "", "Only screen watchlist entries trading on this weekday.")
	runCmd.PersistentFlags().Bool("no-trading-hours", false, "Only request snapshot mark prices.")
	runCmd.PersistentFlags().Bool("paper", false, "Connect to the paper trading gateway.")
	runCmd.PersistentFlags().String("config", "screener.yaml", "Path to the screener yaml config.")
	runCmd.PersistentFlags().String("go-env", "development", "The go environment to run the command in.")
	runCmd.PersistentFlags().String("env-dir", ".", "The directory holding the .env files.")
	runCmd.PersistentFlags().String("csv-out", "", "Write the results to this csv file.")
	runCmd.PersistentFlags().String("des-out", "", "Write the accepted symbols to this DES watchlist import file.")
	runCmd.PersistentFlags().String("log-level", "info", "The logrus log level.")

	runCmd.Execute()
}
