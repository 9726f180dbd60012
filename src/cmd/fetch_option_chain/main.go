package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jiaming2012/options-screener/src/cmd/fetch_option_chain/run"
	"github.com/jiaming2012/options-screener/src/logger"
	"github.com/jiaming2012/options-screener/src/utils"
)

var runCmd = &cobra.Command{
	Use:   "go run src/cmd/fetch_option_chain/main.go --symbol AAPL",
	Short: "Print the option chain of a symbol inside a DTE window",
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

		if runArgs.MinDTE, err = cmd.Flags().GetInt("min-dte"); err != nil {
			log.Fatalf("error getting min-dte: %v", err)
		}

		if runArgs.MaxDTE, err = cmd.Flags().GetInt("max-dte"); err != nil {
			log.Fatalf("error getting max-dte: %v", err)
		}

		if runArgs.Paper, err = cmd.Flags().GetBool("paper"); err != nil {
			log.Fatalf("error getting paper: %v", err)
		}

		if runArgs.NoTradingHours, err = cmd.Flags().GetBool("no-trading-hours"); err != nil {
			log.Fatalf("error getting no-trading-hours: %v", err)
		}

		if err := utils.InitEnvironmentVariables(envDir, goEnv); err != nil {
			log.Warnf("environment file not loaded: %v", err)
		}

		cfg, err := utils.LoadScreenerConfig(configPath, !cmd.Flags().Changed("config"))
		if err != nil {
			log.Fatalf("error loading config: %v", err)
		}

		utils.ApplyEnvironment(cfg)

		if !cmd.Flags().Changed("min-dte") {
			runArgs.MinDTE = cfg.Chain.MinDTE
		}

		if !cmd.Flags().Changed("max-dte") {
			runArgs.MaxDTE = cfg.Chain.MaxDTE
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := run.Run(ctx, cfg, runArgs)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		run.PrintChain(os.Stdout, result)
	},
}

func main() {
	runCmd.PersistentFlags().String("symbol", "", "The underlying stock symbol.")
	runCmd.PersistentFlags().Int("min-dte", 90, "Minimum days to expiry.")
	runCmd.PersistentFlags().Int("max-dte", 120, "Maximum days to expiry.")
	runCmd.PersistentFlags().Bool("paper", false, "Connect to the paper trading gateway.")
	runCmd.PersistentFlags().Bool("no-trading-hours", false, "Only request snapshot mark prices.")
	runCmd.PersistentFlags().String("config", "screener.yaml", "Path to the screener yaml config.")
	runCmd.PersistentFlags().String("go-env", "development", "The go environment to run the command in.")
	runCmd.PersistentFlags().String("env-dir", ".", "The directory holding the .env files.")
	runCmd.PersistentFlags().String("log-level", "info", "The logrus log level.")

	runCmd.MarkPersistentFlagRequired("symbol")

	runCmd.Execute()
}
