package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"

	"github.com/jgivc/mfdl/internal/adapter/httpadapter"
	"github.com/jgivc/mfdl/internal/common"
	"github.com/jgivc/mfdl/internal/config"
	"github.com/jgivc/mfdl/internal/entity"
	httphandler "github.com/jgivc/mfdl/internal/handler/http"
	"github.com/jgivc/mfdl/internal/handler/prompt"
	"github.com/jgivc/mfdl/internal/metrics"
	"github.com/jgivc/mfdl/internal/repository/api"
	"github.com/jgivc/mfdl/internal/service/download"
	"github.com/jgivc/mfdl/internal/service/filter"
	"github.com/jgivc/mfdl/internal/service/scheduler"
	"github.com/jgivc/mfdl/internal/service/tree"
	"github.com/jgivc/mfdl/internal/service/urlparse"
	"github.com/jgivc/mfdl/internal/storage/ratelimit"
	"github.com/jgivc/mfdl/internal/util"
)

const (
	redisPingTimeout = 5 * time.Second
	shutdownTimeout  = 5 * time.Second
)

type Scheduler interface {
	DownloadURL(ctx context.Context, parsed entity.ParsedURL) ([]entity.DownloadResult, error)
}

type App struct {
	cfg     *config.Config
	in      io.Reader
	out     io.Writer
	hooks   scheduler.Hooks
	fs      afero.Fs
	runID   string
	state   *entity.RunState
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	rdb     *redis.Client
	srv     *http.Server
	sched   Scheduler
	parsed  atomic.Pointer[entity.ParsedURL]
	started atomic.Pointer[time.Time]
	log     *slog.Logger
}

// New creates an application for one run. Interactive questions are asked on out
// and answered from in.
func New(cfg *config.Config, in io.Reader, out io.Writer) *App {
	return &App{
		cfg:   cfg,
		in:    in,
		out:   out,
		fs:    afero.NewOsFs(),
		runID: uuid.NewString(),
		state: &entity.RunState{},
	}
}

// SetHooks must be called before Start.
func (a *App) SetHooks(hooks scheduler.Hooks) {
	a.hooks = hooks
}

func (a *App) Start() error {
	lo := &slog.HandlerOptions{}
	switch a.cfg.LogLevel {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		return fmt.Errorf("unknown log level: %q", a.cfg.LogLevel)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, lo)).With(slog.String("run_id", a.runID))
	a.log = log

	if a.hooks.AfterScan == nil {
		a.hooks.AfterScan = func(root *entity.FolderInfo, mapping *entity.FileSystemMapping) {
			log.Debug("Scan finished", slog.String("folder", root.String()), slog.Int("nodes", mapping.Len()))
		}
	}

	if a.hooks.BeforeDownload == nil {
		a.hooks.BeforeDownload = func(params entity.DownloadParams) {
			log.Debug("Dispatch download", slog.String("params", params.String()))
		}
	}

	a.reg = prometheus.NewRegistry()
	a.metrics = metrics.New(a.reg)

	queue, err := a.requestQueue()
	if err != nil {
		return err
	}

	userAgent := util.SelectUserAgent(a.cfg.Proxy)
	log.Debug("Selected user-agent", slog.Bool("proxy", a.cfg.Proxy != ""), slog.String("user_agent", userAgent))

	cl, err := httpadapter.NewHTTPClient(httpadapter.ClientConfig{
		Timeout:   a.cfg.Timeout,
		Proxy:     a.cfg.Proxy,
		MaxJobs:   a.cfg.MaxJobs,
		UserAgent: userAgent,
		Headers:   a.cfg.Headers,
		Cookies:   a.cfg.Cookies,
	})
	if err != nil {
		return fmt.Errorf("cannot create http client: %w", err)
	}

	filters, err := filter.FromConfig(a.cfg.Filters)
	if err != nil {
		return fmt.Errorf("cannot compile filters: %w", err)
	}

	req := httpadapter.NewRequester(cl, queue, a.metrics, log)
	retryCfg := httpadapter.RetryConfig{
		Retries:  a.cfg.Retries,
		DelayMin: a.cfg.RetryDelayMin,
		DelayMax: a.cfg.RetryDelayMax,
	}

	apiRetrier := httpadapter.NewRetrier(retryCfg, a.state.Aborted, log)
	apiRetrier.OnRetry(func(counted bool) { a.metrics.ObserveFailedAttempt("api", counted) })

	// downloads in flight run until they finish or fail, abort only stops scheduling
	fileRetrier := httpadapter.NewRetrier(retryCfg, nil, log)
	fileRetrier.OnRetry(func(counted bool) { a.metrics.ObserveFailedAttempt("file", counted) })

	var decider interface {
		download.Decider
		scheduler.Decider
	}
	if a.cfg.NoConfirm {
		decider = prompt.NewUnattendedDecider()
	} else {
		decider = prompt.NewConsoleDecider(a.in, a.out)
	}

	repo := api.NewAPIRepository(a.cfg.APIBase, req, apiRetrier, log)
	builder := tree.NewTreeBuilder(a.cfg.DestBase, repo, log)
	downloader := download.NewFileDownloader(download.Config{
		Mode:      a.cfg.DownloadMode,
		NoConfirm: a.cfg.NoConfirm,
	}, a.fs, req, fileRetrier, decider, a.state, a.metrics, log)

	a.sched = scheduler.NewScheduler(scheduler.Config{
		DestBase: a.cfg.DestBase,
		MaxJobs:  a.cfg.MaxJobs,
		Filters:  filters,
		Hooks:    a.hooks,
	}, repo, builder, downloader, decider, a.state, a.metrics, log)

	if a.cfg.MetricsListen != "" {
		a.srv = &http.Server{
			Addr:    a.cfg.MetricsListen,
			Handler: httphandler.NewMux(a.reg, a, log),
		}

		go func() {
			log.Info("Start listen", slog.String("addr", a.cfg.MetricsListen))

			if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Could not serve", slog.String("listen_addr", a.cfg.MetricsListen), slog.Any("error", err))
			}
		}()
	}

	return nil
}

func (a *App) requestQueue() (ratelimit.RequestQueue, error) {
	if a.cfg.NoDelay {
		return nil, nil
	}

	if a.cfg.RedisURL == "" {
		return ratelimit.NewMemoryQueue(a.cfg.RequestDelay, a.log), nil
	}

	opt, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("cannot parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()

		return nil, fmt.Errorf("cannot connect to redis: %w", err)
	}

	a.rdb = rdb

	return ratelimit.NewRedisQueue(rdb, a.cfg.RequestDelay, a.log), nil
}

// Run downloads everything rawURL points to. An App serves a single run.
func (a *App) Run(ctx context.Context, rawURL string) ([]entity.DownloadResult, error) {
	parsed, err := urlparse.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	if !a.parsed.CompareAndSwap(nil, &parsed) {
		return nil, common.ErrRunAlreadyStarted
	}

	now := time.Now()
	a.started.Store(&now)

	a.log.Info("Run started", slog.String("url", a.OriginalURL()))

	return a.sched.DownloadURL(ctx, parsed)
}

// OriginalURL is the canonical link of the current run target.
func (a *App) OriginalURL() string {
	p := a.parsed.Load()
	if p == nil {
		return ""
	}

	return util.ComposeLink(p.FolderKey, p.FileKey, p.Name)
}

// Abort stops scheduling new work. Downloads in flight finish on their own.
func (a *App) Abort() {
	if a.log != nil {
		a.log.Warn("Aborting...")
	}
	a.state.Abort()
}

func (a *App) Status() entity.RunStatus {
	st := entity.RunStatus{
		RunID:         a.runID,
		URL:           a.OriginalURL(),
		QueueSize:     a.state.QueueSize(),
		QueueSizeOrig: a.state.QueueSizeOrig(),
		Aborted:       a.state.Aborted(),
	}

	if t := a.started.Load(); t != nil {
		st.Started = *t
	}

	return st
}

func (a *App) Stop() {
	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		a.srv.Shutdown(ctx)
	}

	if a.rdb != nil {
		a.rdb.Close()
	}
}
