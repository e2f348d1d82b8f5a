package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	denso "github.com/iwtcode/densoAdapter"
	"github.com/iwtcode/densoAdapter/internal/monitor"
	"github.com/iwtcode/densoAdapter/robot"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	envFile    string
	ipFlag     string
	controller string
	cfg        *denso.Config
)

var rootCmd = &cobra.Command{
	Use:           "densoctl",
	Short:         "DENSO robot controller session over b-CAP",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := denso.Load(envFile)
		if err != nil {
			return err
		}
		if ipFlag != "" {
			loaded.IP = ipFlag
		}
		if controller != "" {
			loaded.Controller = strings.ToUpper(strings.TrimSpace(controller))
		}
		cfg = loaded
		return cfg.Validate()
	},
}

// withClient подключается, выполняет fn и всегда отключается.
func withClient(fn func(c *denso.Client) error) error {
	c, err := denso.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			c.GetLogger().WithError(err).Warn("disconnect finished with errors")
		}
	}()
	return fn(c)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Clear errors, reconnect, enable motors and archive all programs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(func(c *denso.Client) error {
			log := c.GetLogger()
			log.Info("rob lib logs")

			// Ошибки шагов уже записаны в журнал; сценарий продолжается как есть.
			var first error
			keep := func(err error) {
				if err != nil && first == nil {
					first = err
				}
			}
			keep(c.ClearErrors())
			keep(c.Reconnect())
			keep(c.StandbyOn())

			report, err := c.ArchivePrograms("")
			keep(err)
			if report != nil {
				log.Infof("archive %s: %d files, %d directories, %d skipped",
					report.Root, len(report.Files), len(report.Directories), len(report.Skipped))
			}
			keep(c.StandbyOff())
			return first
		})
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive [dir]",
	Short: "Mirror the controller program tree to a local directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) == 1 {
			dir = args[0]
		}
		return withClient(func(c *denso.Client) error {
			report, err := c.ArchivePrograms(dir)
			if report != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				_ = enc.Encode(report)
			}
			return err
		})
	},
}

var watchCollision bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Serve /metrics and a /ws telemetry stream while polling the controller",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withClient(func(c *denso.Client) error {
			log := c.GetLogger()
			hub := monitor.NewHub(log)
			go hub.Run(ctx)
			go hub.Pump(ctx, c.StartPolling(ctx, cfg.MonitorInterval()))

			if watchCollision {
				go func() {
					err := c.WatchCollision(ctx, cfg.MonitorInterval(), func(flag int) {
						log.WithField("flag", flag).Warn("collision flag raised")
					})
					if err != nil {
						log.WithError(err).Error("collision watch stopped")
					}
				}()
			}

			srv := &http.Server{Addr: cfg.MonitorAddr, Handler: hub.Handler()}
			errCh := make(chan error, 1)
			go func() {
				log.Infof("monitor listening on %s", cfg.MonitorAddr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return errors.Wrap(err, "monitor server")
				}
				return nil
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		})
	},
}

var homeCmd = &cobra.Command{
	Use:   "home",
	Short: "Move the arm to the joint-space start position",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(func(c *denso.Client) error {
			if err := c.StandbyOn(); err != nil {
				return err
			}
			return c.Home()
		})
	},
}

var jogCmd = &cobra.Command{
	Use:   "jog dx dy dz [drx dry drz]",
	Short: "Queue one relative move from the current position",
	Args:  cobra.RangeArgs(3, 6),
	RunE: func(cmd *cobra.Command, args []string) error {
		dev := make(robot.Deviation, 6)
		for i, a := range args {
			v, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return errors.Wrapf(err, "deviation component %d", i+1)
			}
			dev[i] = v
		}
		return withClient(func(c *denso.Client) error {
			if err := c.StandbyOn(); err != nil {
				return err
			}
			pose, err := c.Move(dev)
			if err != nil {
				_ = c.StandbyOff()
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pose)
			return c.StandbyOff()
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to .env file")
	rootCmd.PersistentFlags().StringVar(&ipFlag, "ip", "", "controller address (overrides DENSO_IP)")
	rootCmd.PersistentFlags().StringVar(&controller, "controller", "", "controller variant RC8 or RC9 (overrides DENSO_CONTROLLER)")
	monitorCmd.Flags().BoolVar(&watchCollision, "collision", false, "also poll the I1 collision flag")

	rootCmd.AddCommand(runCmd, archiveCmd, monitorCmd, homeCmd, jogCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
