package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "desk",
		Short: "🗂️  Client back office for credit repair and funding consultants",
		Long: `desk: the admin console for the client back office.

Manage the client roster, mirror funding relationships, run forensic credit
audits, draft dispute letters, and serve the callable functions endpoint.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindFlags(cmd); err != nil {
				return err
			}
			return initConfig(cfgFile)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/clientdesk/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("db", "", "database path (overrides database.path)")

	configKey(rootCmd.PersistentFlags(), "log-level", "logging.level")
	configKey(rootCmd.PersistentFlags(), "log-format", "logging.format")
	configKey(rootCmd.PersistentFlags(), "db", "database.path")

	rootCmd.AddCommand(clientsCmd())
	rootCmd.AddCommand(fundingCmd())
	rootCmd.AddCommand(legacyMigrateCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(lettersCmd())
	rootCmd.AddCommand(libraryCmd())
	rootCmd.AddCommand(vaultCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(dbCmd())
	rootCmd.AddCommand(checkpointCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		var userErr *common.UserError
		if errors.As(err, &userErr) {
			fmt.Fprintln(os.Stderr, userErr.UserMessage)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// viperKeyAnnotation marks a flag with the config key it overrides.
const viperKeyAnnotation = "clientdesk_viper_key"

// configKey records that flag name overrides key. Viper only sees the flag
// once bindFlags runs for the executing command.
func configKey(flags *pflag.FlagSet, name, key string) {
	_ = flags.SetAnnotation(name, viperKeyAnnotation, []string{key})
}

// bindFlags binds every annotated flag of the executing command, inherited
// persistent flags included, to its viper key.
func bindFlags(cmd *cobra.Command) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[viperKeyAnnotation]
		if err != nil || len(keys) == 0 {
			return
		}
		if berr := viper.BindPFlag(keys[0], f); berr != nil {
			err = fmt.Errorf("failed to bind --%s: %w", f.Name, berr)
		}
	})
	return err
}

func initConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		viper.AddConfigPath(fmt.Sprintf("%s/.config/clientdesk", home))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	level, err := common.ParseLevel(viper.GetString("logging.level"))
	if err != nil {
		return err
	}
	if err := common.SetupLogger(level, viper.GetString("logging.format")); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			slog.Debug("desk version", "version", version)
			fmt.Fprintln(cmd.OutOrStdout(), "desk", version)
		},
	}
}
