package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"payrollaudit/config"
	"payrollaudit/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli carries the settings shared by every subcommand.
type cli struct {
	v       *viper.Viper
	cfgPath string
	cfg     config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.New()}

	root := &cobra.Command{
		Use:           "payrollaudit",
		Short:         "Cross-reference payroll records across government entities",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.v, c.cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "payrollaudit")
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgPath, "config", "", "path to a YAML config file")
	flags.String("database-url", "", "PostgreSQL connection string")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "json or console")
	flags.String("token", "", "reviewer token issued by \"user login\"")
	_ = c.v.BindPFlag("database.url", flags.Lookup("database-url"))
	_ = c.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = c.v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = c.v.BindPFlag("token", flags.Lookup("token"))

	root.AddCommand(
		newDBCmd(c),
		newIngestCmd(c),
		newFindingsCmd(c),
		newArchiveCmd(c),
		newRunsCmd(c),
		newWorkersCmd(c),
		newReviewCmd(c),
		newUserCmd(c),
		newServeCmd(c),
	)
	return root
}

// token returns the reviewer token from --token or PAYROLLAUDIT_TOKEN.
func (c *cli) token() string {
	return c.v.GetString("token")
}
