package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/turtacn/Optibench/internal/display"
	"github.com/turtacn/Optibench/internal/monitor"
	"github.com/turtacn/Optibench/internal/motion"
	"github.com/turtacn/Optibench/internal/orchestrator"
	"github.com/turtacn/Optibench/pkg/consts"
	"github.com/turtacn/Optibench/pkg/logger"
	"github.com/turtacn/Optibench/pkg/protocol"
	"gopkg.in/yaml.v3"

	// In-memory motion driver, selectable with motion.driver: sim
	_ "github.com/turtacn/Optibench/internal/motion/simmotion"
)

var (
	cfgFile string
	envFile string
	addr    string

	cfg *protocol.Config
)

var rootCmd = &cobra.Command{
	Use:           "optibench",
	Short:         "Optibench: remote control host for the optical bench",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading %s: %w", envFile, err)
		}
		c, err := protocol.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		cfg = c
		logger.InitLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Bind the devices and serve remote calls until SIGINT/SIGTERM",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr != "" {
			cfg.Server.Address = addr
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		monitor.InitMetrics(cfg.Observability.MetricsPort)

		logger.Log.Info("Booting Optibench host...", "addr", cfg.Server.Address,
			"display_driver", cfg.Display.Driver, "motion_driver", cfg.Motion.Driver)

		engine := orchestrator.NewEngine(cfg)
		if err := engine.Run(cmd.Context()); err != nil {
			logger.Log.Error("Engine fatal error", "err", err)
			return err
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and print the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "config:          %s\n", cfgFile)
		fmt.Fprintf(out, "listen:          %s%s\n", cfg.Server.Address, protocol.RPCPath)
		fmt.Fprintf(out, "display driver:  %s (simulate=%v, linked: %v)\n", cfg.Display.Driver, cfg.Display.Simulate, display.AvailableDrivers())
		fmt.Fprintf(out, "motion driver:   %s (linked: %v)\n", cfg.Motion.Driver, motion.Available())

		types := make([]protocol.StageType, 0, len(cfg.Stages))
		for t := range cfg.Stages {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool { return types[i].Number() < types[j].Number() })
		for _, t := range types {
			id := cfg.Stages[t]
			fmt.Fprintf(out, "stage %d %-8s serial=%s profile=%s\n", t.Number(), t, id.Serial, id.Profile)
		}

		if v, _ := cmd.Flags().GetBool("dump"); v {
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", consts.DefaultConfigFile, "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with "+consts.EnvPrefix+"* overrides")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "host address (defaults to server.address from the config)")
	checkCmd.Flags().Bool("dump", false, "print the effective configuration as YAML")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	addClientCommands(rootCmd)
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Personal.AI order the ending
