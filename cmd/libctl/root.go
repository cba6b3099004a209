package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"library-api/internal/app"
	"library-api/internal/core/config"
	"library-api/internal/core/logger"
)

type runFunc func(ctx context.Context, cmd *cobra.Command, a *app.App) error

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "libctl",
		Short:         "Library API maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default $CONFIG_PATH or ./configs/config.local.yaml)")

	// withApp 打开依赖 -> 执行 -> 关闭
	withApp := func(fn runFunc) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Read(cfgPath)
			if err != nil {
				return err
			}
			log, cleanup := logger.FromConfig(cfg.Log, cfg.App.Production())
			defer cleanup()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := app.Open(ctx, cfg, log.Named("libctl"))
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Warn("close resources", zap.Error(err))
				}
			}()
			return fn(ctx, cmd, a)
		}
	}

	root.AddCommand(
		newMigrateCmd(withApp),
		newSeedCmd(withApp),
		newSweepCmd(withApp),
		newUserCmd(withApp),
	)
	return root
}
