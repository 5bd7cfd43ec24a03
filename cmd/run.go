// -- cmd/run.go --
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/michaelkaye/trafficlight-agent/internal/browser"
	"github.com/michaelkaye/trafficlight-agent/internal/browser/cdp"
	"github.com/michaelkaye/trafficlight-agent/internal/browser/rodp"
	"github.com/michaelkaye/trafficlight-agent/internal/config"
	"github.com/michaelkaye/trafficlight-agent/internal/control"
	"github.com/michaelkaye/trafficlight-agent/internal/dispatch"
	"github.com/michaelkaye/trafficlight-agent/internal/loop"
	"github.com/michaelkaye/trafficlight-agent/internal/observability"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [one-shot|forever]",
		Short: "Registers with the trafficlight server and executes actions until told to exit",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to viper keys so they override config/env with the
			// right precedence.
			if err := viper.BindPFlag("control.url", cmd.Flags().Lookup("control-url")); err != nil {
				return err
			}
			if err := viper.BindPFlag("app.url", cmd.Flags().Lookup("app-url")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.driver", cmd.Flags().Lookup("driver")); err != nil {
				return err
			}
			return viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// cobra prints usage on argument errors; a bad run mode is a
			// plain diagnostic + exit code 1 instead.
			cmd.SilenceUsage = true

			mode := loop.ModeOneShot
			if len(args) == 1 {
				var err error
				if mode, err = loop.ParseRunMode(args[0]); err != nil {
					return err
				}
			}

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			logger := observability.GetLogger()
			logger.Info("Agent configured.",
				zap.String("mode", string(mode)),
				zap.String("control_url", cfg.Control.URL),
				zap.String("app_url", cfg.App.URL),
				zap.String("driver", cfg.Browser.Driver),
			)

			factory, err := sessionFactory(cfg, logger)
			if err != nil {
				return err
			}

			client := control.NewClient(cfg.Control.RequestTimeout, Version, logger)
			dispatcher := dispatch.New(cfg.App.URL, logger)
			agentLoop := loop.New(cfg.Control.URL, client, dispatcher, factory, logger)
			supervisor := loop.NewSupervisor(agentLoop, mode, logger)

			err = supervisor.Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				logger.Info("Agent stopped by signal.")
				return nil
			}
			return err
		},
	}

	runCmd.Flags().String("control-url", "", "Base URL of the trafficlight control server. (Overrides config/env)")
	runCmd.Flags().String("app-url", "", "Base URL of the element-web deployment under test. (Overrides config/env)")
	runCmd.Flags().String("driver", "", "Browser automation driver: 'chromedp' or 'rod'. (Overrides config/env)")
	runCmd.Flags().Bool("headless", true, "Run the browser headless. (Overrides config/env)")

	return runCmd
}

// sessionFactory returns a browser.Factory for the configured driver. Each
// call to the factory launches a fresh browser; the loop invokes it once per
// registration cycle.
func sessionFactory(cfg *config.Config, logger *zap.Logger) (browser.Factory, error) {
	switch cfg.Browser.Driver {
	case config.DriverChromedp:
		return func(ctx context.Context) (browser.Session, error) {
			return cdp.New(ctx, cfg, logger)
		}, nil
	case config.DriverRod:
		return func(ctx context.Context) (browser.Session, error) {
			return rodp.New(ctx, cfg, logger)
		}, nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Browser.Driver)
	}
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
