package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/maisonhai3/AI-planning-for-students/internal/config"
	"github.com/maisonhai3/AI-planning-for-students/internal/generation"
	"github.com/maisonhai3/AI-planning-for-students/internal/llm"
	"github.com/maisonhai3/AI-planning-for-students/internal/logging"
	"github.com/maisonhai3/AI-planning-for-students/internal/metrics"
	"github.com/maisonhai3/AI-planning-for-students/internal/render"
	"github.com/maisonhai3/AI-planning-for-students/internal/repository"
	"github.com/maisonhai3/AI-planning-for-students/internal/router"
	"github.com/maisonhai3/AI-planning-for-students/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// needs lists the external dependencies a command uses. Commands without a
// model run with llm validation skipped.
type needs struct {
	llm   bool
	store bool
}

// runtime is the wired pipeline for one command invocation.
type runtime struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	client   llm.LLMClient
	store    *repository.Store
	pipeline *service.PipelineService
	delivery *service.DeliveryService
}

func (a *App) loadConfig(n needs) (*config.Config, error) {
	if n.llm {
		return config.Load(a.configPath)
	}
	return config.Load(a.configPath, config.Offline())
}

func (a *App) logOutput(cmd *cobra.Command) io.Writer {
	if a.LogOutput != nil {
		return a.LogOutput
	}
	return cmd.ErrOrStderr()
}

func (a *App) build(cmd *cobra.Command, n needs) (*runtime, error) {
	ctx := cmd.Context()
	cfg, err := a.loadConfig(n)
	if err != nil {
		return nil, err
	}
	log, err := logging.NewWithWriter(cfg.Log, a.logOutput(cmd))
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	rt := &runtime{cfg: cfg, log: log, registry: reg, metrics: m}

	if n.llm {
		observers := llm.Observers{m}
		if cfg.LLM.LogCalls {
			observers = append(observers, llm.NewLogObserver(log))
		}
		newLLM := a.NewLLM
		if newLLM == nil {
			newLLM = llm.NewClient
		}
		if rt.client, err = newLLM(ctx, cfg.LLM, observers); err != nil {
			return nil, fmt.Errorf("creating llm client: %w", err)
		}
	}

	routerOpts := []router.Option{router.WithLogger(log), router.WithMetrics(m)}
	if rt.client != nil {
		routerOpts = append(routerOpts, router.WithClient(rt.client))
	}
	og := cfg.Repair.OutputGuard()
	renderer := render.New()

	var gen service.PlanGenerator
	if rt.client != nil {
		gen = generation.New(cfg.Generator, rt.client,
			generation.WithOutputGuard(og),
			generation.WithRenderer(renderer),
			generation.WithLogger(log),
			generation.WithMetrics(m),
		)
	}

	svcOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithObserver(service.NewLogUseCaseObserver(log)),
	}
	rt.pipeline = service.NewPipelineService(cfg.Guard.InputGuard(), router.New(cfg.Router, routerOpts...), gen, cfg.Guard.MaxInputLength, svcOpts...)

	if n.store {
		if rt.store, err = repository.Open(ctx, cfg.Store); err != nil {
			return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
		}
		rt.delivery = service.NewDeliveryService(rt.store.Plans, rt.store.Feedback, og, renderer, cfg.Server.ShareBaseURL, svcOpts...)
	}
	return rt, nil
}

func (rt *runtime) close() error {
	var errs []error
	if rt.store != nil {
		errs = append(errs, rt.store.Close())
	}
	errs = append(errs, logging.Sync(rt.log))
	return errors.Join(errs...)
}
