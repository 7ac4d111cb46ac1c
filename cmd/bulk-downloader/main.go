package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alanbriolat/bulk-downloader"
	"github.com/alanbriolat/bulk-downloader/async"
	"github.com/alanbriolat/bulk-downloader/internal/config"
)

func main() {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := logConfig.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = bulk_downloader.WithLogger(ctx, logger)

	a := &application{logLevel: logConfig.Level}
	app := &cli.App{
		Name:  "bulk-downloader",
		Usage: "download media linked from reddit posts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "load settings from YAML `FILE`",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "load " + config.EnvPrefix + "* settings from `FILE` if it exists",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "minimum `LEVEL` to log (debug, info, warn, error)",
			},
		},
		Before: a.before,
		Commands: []*cli.Command{
			a.downloadCommand(),
			a.resolveCommand(),
			a.providersCommand(),
		},
		HideHelpCommand: true,
	}

	result := async.Run(func() error { return app.RunContext(ctx, os.Args) })

	select {
	case err = <-result:
		if err != nil {
			logger.Fatal(err.Error())
		}
	case <-ctx.Done():
		logger.Info("Exiting gracefully...")
		stop()
		err = <-result
		if err != nil && ctx.Err() == nil {
			logger.Fatal(err.Error())
		}
	}
}
