// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagecraft/internal/config"
	"github.com/xkilldash9x/pagecraft/internal/observability"
	"github.com/xkilldash9x/pagecraft/pkg/driver/launch"
	"github.com/xkilldash9x/pagecraft/pkg/pageobject"
)

type contextKey string

const configKey contextKey = "config"

// launcher starts browsers for probe and run. Tests replace it.
var launcher pageobject.Launcher = launch.Open

// NewRootCmd builds the command tree. Each call returns an independent tree
// with its own viper instance.
func NewRootCmd() *cobra.Command {
	var (
		cfgFile string
		verbose bool
	)
	v := viper.New()

	root := &cobra.Command{
		Use:           "pagecraft",
		Short:         "pagecraft drives page objects against a real browser.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.SetDefaults(v)
			if err := initializeConfig(v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "pagecraft"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			if verbose {
				if err := observability.SetLevel("debug"); err != nil {
					return err
				}
			}
			observability.GetLogger().Debug("Configuration loaded.",
				zap.String("version", Version),
				zap.String("driver", cfg.Driver().Name),
				zap.String("config_file", v.ConfigFileUsed()))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	root.SetVersionTemplate(`{{printf "pagecraft %s\n" .Version}}`)

	flags := root.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./pagecraft.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.String("driver", "", fmt.Sprintf("browser driver (%s)", strings.Join(launch.Names(), ", ")))
	flags.Bool("headless", true, "run the browser without a window")
	flags.String("remote-url", "", "attach to a running browser, WebDriver hub or playwright server")
	_ = v.BindPFlag("driver.name", flags.Lookup("driver"))
	_ = v.BindPFlag("driver.headless", flags.Lookup("headless"))
	_ = v.BindPFlag("driver.remote_url", flags.Lookup("remote-url"))

	root.AddCommand(
		newVersionCmd(),
		newDriversCmd(),
		newProbeCmd(),
		newRunCmd(),
	)
	return root
}

// Execute runs the CLI with the signal-aware context from main.
func Execute(ctx context.Context) error {
	defer observability.Sync()
	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

// initializeConfig reads in the config file and PAGECRAFT_* variables.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("pagecraft")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PAGECRAFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// newTestContext builds a page-object context from the loaded configuration.
func newTestContext(cfg config.Interface) *pageobject.TestContext {
	logger := observability.GetLogger()
	var regOpts []pageobject.RegistryOption
	if cfg.Registry().Strict {
		regOpts = append(regOpts, pageobject.WithStrictRegistration())
	}
	t := cfg.Timeouts()
	return pageobject.NewTestContext(
		pageobject.WithLogger(logger),
		pageobject.WithRegistry(pageobject.NewRegistry(logger, regOpts...)),
		pageobject.WithLauncher(launcher),
		pageobject.WithDriverOptions(cfg.Driver().Options(logger.Named("driver"))),
		pageobject.WithSettings(pageobject.Settings{
			ElementTimeout:         t.Element,
			ElementPollInterval:    t.ElementPoll,
			VisibilityTimeout:      t.Visibility,
			VisibilityPollInterval: t.VisibilityPoll,
			TextEntryAttempts:      t.TextEntryAttempts,
			TextEntryPause:         t.TextEntryPause,
			BodyTextLimit:          t.BodyTextLimit,
		}),
	)
}
