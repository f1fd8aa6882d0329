package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/jobcopilot/internal/async"
	"github.com/joseph-ayodele/jobcopilot/internal/common"
	"github.com/joseph-ayodele/jobcopilot/internal/export"
	"github.com/joseph-ayodele/jobcopilot/internal/ingest"
	"github.com/joseph-ayodele/jobcopilot/internal/metrics"
	"github.com/joseph-ayodele/jobcopilot/internal/ocr"
	"github.com/joseph-ayodele/jobcopilot/internal/ownership"
	"github.com/joseph-ayodele/jobcopilot/internal/parser/jobdesc"
	resumeparser "github.com/joseph-ayodele/jobcopilot/internal/parser/resume"
	"github.com/joseph-ayodele/jobcopilot/internal/pipeline"
	repo "github.com/joseph-ayodele/jobcopilot/internal/repository"
	"github.com/joseph-ayodele/jobcopilot/internal/server"
	"github.com/joseph-ayodele/jobcopilot/internal/services/analysis"
	"github.com/joseph-ayodele/jobcopilot/internal/services/resume"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("jobcopilot stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("jobcopilot stopped")
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	store, err := repo.OpenStore(ctx, repo.ConfigFrom(cfg.Database), logger)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	if err := store.Ping(ctx, 5*time.Second); err != nil {
		return err
	}

	// Pipelines share one bounded pool for their parallel groups.
	stagePool := pipeline.NewPool(cfg.Pipeline.PoolSize)
	defer func() { _ = stagePool.Close() }()
	pipeOpts := []pipeline.Option{
		pipeline.WithPool(stagePool),
		pipeline.WithObserver(metrics.ObserveStage),
		pipeline.WithLogger(logger),
	}

	jdPipe, err := jobdesc.NewPipeline(jobdesc.DomainScoring{
		TitleWeight: cfg.Pipeline.DomainTitleWeight,
		MinScore:    cfg.Pipeline.DomainMinScore,
	}, pipeOpts...)
	if err != nil {
		return err
	}
	defer jdPipe.Close()

	extractor := ocr.NewExtractor(ocr.Config{
		Pdftotext:     cfg.OCR.Pdftotext,
		Pdftoppm:      cfg.OCR.Pdftoppm,
		Tesseract:     cfg.OCR.Tesseract,
		TesseractLang: cfg.OCR.TesseractLang,
		DPI:           cfg.OCR.DPI,
		MaxPages:      cfg.OCR.MaxPages,
		Concurrency:   cfg.OCR.Concurrency,
		OCRFallback:   cfg.OCR.OCRFallback,
		Timeout:       cfg.OCR.Timeout,
	}, logger)
	resumeText, err := resumeparser.NewTextPipeline(resumeparser.Options{}, pipeOpts...)
	if err != nil {
		return err
	}
	defer resumeText.Close()
	resumePDF, err := resumeparser.NewPDFPipeline(extractor, resumeparser.Options{}, pipeOpts...)
	if err != nil {
		return err
	}
	defer resumePDF.Close()

	analyzer, err := analysis.NewAnalyzer(store.Jobs, jdPipe, logger)
	if err != nil {
		return err
	}

	workers := async.NewPool(logger,
		async.WithWorkers(cfg.Poller.WorkerThreads),
		async.WithQueueSize(cfg.Poller.QueueSize),
		async.WithTaskTimeout(cfg.Poller.LeaseTTL),
	)
	poller := async.NewPoller(async.PollerConfig{
		WorkerID:    cfg.Poller.ID,
		Interval:    cfg.Poller.Interval,
		LeaseTTL:    cfg.Poller.LeaseTTL,
		MaxAttempts: cfg.Poller.MaxAttempts,
	}, store.Jobs, workers, analyzer.Handle, logger)
	reaper := async.NewReaper(store.Jobs, cfg.Poller.ReapInterval, cfg.Poller.LeaseTTL, cfg.Poller.MaxAttempts, logger)

	submissions := analysis.NewSubmissionService(store.Jobs, newOwnershipChecker(cfg.Ownership, logger), logger)

	httpSrv := server.NewHTTPServer(server.Deps{
		Submitter: submissions,
		Jobs:      store.Jobs,
		Exporter:  export.NewService(store.Jobs, logger),
		Resumes:   resume.NewService(resumeText, resumePDF, logger),
		Store:     store,
	}, 0, logger)
	healthSrv := server.NewHealthServer(store, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})
	g.Go(func() error {
		reaper.Run(gctx)
		return nil
	})
	g.Go(func() error {
		healthSrv.Watch(gctx, 15*time.Second, 2*time.Second)
		return nil
	})

	if len(cfg.Ingest.Dirs) > 0 {
		paths, errs, err := ingest.StartWatcher(gctx, ingest.WatchConfig{
			Roots:       cfg.Ingest.Dirs,
			InitialScan: true,
			Debounce:    cfg.Ingest.Debounce,
			SkipHidden:  true,
		}, logger)
		if err != nil {
			return err
		}
		sub := ingest.NewSubmitter(submissions, cfg.Ingest.UserID, cfg.Ingest.ProfileID, logger)
		g.Go(func() error {
			if err := sub.Run(gctx, paths, errs); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			return err
		}
		g.Go(func() error { return healthSrv.Serve(lis) })
	}
	g.Go(func() error { return httpSrv.Listen(cfg.Server.HTTPAddr) })

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		healthSrv.Shutdown()
		if err := httpSrv.Shutdown(sctx); err != nil {
			logger.Warn("http shutdown failed", "error", err)
		}
		workers.Shutdown(sctx)
		return nil
	})

	logger.Info("jobcopilot started",
		"worker_id", cfg.Poller.ID,
		"driver", cfg.Database.Driver,
		"http_addr", cfg.Server.HTTPAddr,
		"grpc_addr", cfg.Server.GRPCAddr,
		"worker_threads", cfg.Poller.WorkerThreads,
	)
	return g.Wait()
}

func newOwnershipChecker(cfg common.OwnershipConfig, logger *slog.Logger) ownership.Checker {
	switch {
	case cfg.BaseURL != "":
		return ownership.NewHTTPChecker(cfg.BaseURL, cfg.Timeout, logger)
	case len(cfg.StaticOwners) > 0:
		return ownership.NewStatic(cfg.StaticOwners)
	default:
		logger.Warn("no profile service configured, every profile is treated as owned by its caller")
		return ownership.AllowAll{}
	}
}
