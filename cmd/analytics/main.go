package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"commerce-analytics/config"
	"commerce-analytics/internal/analytics"
	"commerce-analytics/internal/export"
	"commerce-analytics/internal/service"
	"commerce-analytics/internal/store"
	"commerce-analytics/internal/util"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

func main() {
	report := flag.String("report", "all", "Report to run, or all")
	asOf := flag.String("as_of", service.DefaultAsOf(time.Now()), "Last day covered (YYYY-MM-DD)")
	outDir := flag.String("out", "out", "Directory for JSON exports")
	list := flag.Bool("list", false, "List report names and exit")
	flag.Parse()

	if *list {
		for _, name := range service.Reports() {
			os.Stdout.WriteString(name + "\n")
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	names := service.Reports()
	if *report != "all" {
		names = []string{*report}
	}

	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := analytics.NewEngine(cfg.Analytics.Engine(), util.Component("analytics"))
	reports := service.NewReportService(engine, db, nil, nil)
	exporter := export.NewExporter(*outDir)

	failed := 0
	bar := progressbar.Default(int64(len(names)), "reports")
	for _, name := range names {
		bar.Describe(name)
		result, err := reports.Run(ctx, name, *asOf)
		if err != nil {
			if ctx.Err() != nil {
				logger.Warn("Interrupted", zap.String("report", name))
				break
			}
			logger.Error("Report failed", zap.String("report", name), zap.Error(err))
			failed++
			_ = bar.Add(1)
			continue
		}

		path, err := exporter.Export(name, result)
		if err != nil {
			logger.Error("Export failed", zap.String("report", name), zap.Error(err))
			failed++
		} else {
			logger.Debug("Exported", zap.String("report", name), zap.String("path", path), zap.Int("rows", result.RowCount))
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	logger.Info("Batch finished",
		zap.String("as_of", *asOf),
		zap.Int("reports", len(names)),
		zap.Int("failed", failed))
	if failed > 0 {
		util.SyncLogger()
		os.Exit(1)
	}
}
