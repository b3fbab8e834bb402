package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wudi/pdftext/config"
	"github.com/wudi/pdftext/internal/app"
	"github.com/wudi/pdftext/logging"
	"github.com/wudi/pdftext/observability"
	"github.com/wudi/pdftext/server"
)

var log = logging.Log.WithFields(logrus.Fields{"package": "main"})

const serviceName = "pdftext"

func main() {
	var (
		cfgPath  = flag.String("config", "", "Path to a YAML config file. PDFTEXT_* environment variables override it.")
		logLevel = flag.String("log-level", "", "One of trace, debug, info, warn, error, fatal, or panic. Overrides log.level.")
	)
	flag.Parse()

	v, err := config.Init(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	if *logLevel != "" {
		v.Set("log.level", *logLevel)
	}
	cfg, err := config.NewFromViper(v)
	if err != nil {
		log.Fatal(err)
	}
	logging.SetupLogging(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.InitTracerProvider(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal(errors.Wrap(err, "Unable to set up tracing"))
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.WithError(err).Warn("tracer shutdown")
		}
	}()

	engine, err := app.Engine(cfg)
	if err != nil {
		log.Fatal(errors.Wrap(err, "Unable to create the OCR engine"))
	}
	if a, ok := engine.(interface{ Available() error }); ok {
		if err := a.Available(); err != nil {
			log.WithError(err).Warn("OCR binary not found, scanned documents will fail")
		}
	}
	c, err := app.Cache(cfg)
	if err != nil {
		log.Fatal(err)
	}
	p := app.Pipeline(cfg, engine, c, observability.OTelTracer())

	srv, err := server.New(server.Options{
		Listen:          cfg.Listen,
		MaxUploadSize:   cfg.MaxUploadSize,
		MaxConnections:  cfg.MaxConnections,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Defaults:        cfg.Extract,
		Cache:           c,
	}, p)
	if err != nil {
		log.Fatal(err)
	}
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatal(err)
	}
	log.Info("stopped")
}
