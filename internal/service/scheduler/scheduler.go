package scheduler

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/jgivc/mfdl/internal/common"
	"github.com/jgivc/mfdl/internal/entity"
	"github.com/jgivc/mfdl/internal/metrics"
	"github.com/jgivc/mfdl/internal/service/filter"
	"github.com/jgivc/mfdl/internal/util"
)

type APIRepository interface {
	GetFolderInfo(ctx context.Context, folderKey string) (*entity.FolderInfo, error)
	GetFileInfo(ctx context.Context, quickKey string) (*entity.FileInfo, error)
}

type TreeBuilder interface {
	BuildFileSystem(ctx context.Context, root *entity.FolderInfo) (*entity.FileSystemMapping, error)
}

type Downloader interface {
	Download(ctx context.Context, params entity.DownloadParams) string
}

type Decider interface {
	ConfirmDownload(num int, name string, size int64) bool
}

type Metrics interface {
	SetDiscovered(n int)
	FileDone(status string)
	JobStarted()
	JobFinished()
}

// Hooks are optional callbacks. BeforeDownload is called for every dispatched file
// from its own goroutine.
type Hooks struct {
	BeforeDownload func(params entity.DownloadParams)
	AfterScan      func(root *entity.FolderInfo, mapping *entity.FileSystemMapping)
}

type Config struct {
	DestBase string
	MaxJobs  int
	Filters  []filter.Filter
	Hooks    Hooks
}

type scheduler struct {
	cfg        Config
	api        APIRepository
	tree       TreeBuilder
	downloader Downloader
	decider    Decider
	state      *entity.RunState
	metrics    Metrics
	log        *slog.Logger
}

func NewScheduler(cfg Config, api APIRepository, tree TreeBuilder, downloader Downloader, decider Decider,
	state *entity.RunState, m Metrics, log *slog.Logger) *scheduler {
	if cfg.MaxJobs < 1 {
		cfg.MaxJobs = 1
	}

	if m == nil {
		m = (*metrics.Metrics)(nil)
	}

	return &scheduler{
		cfg:        cfg,
		api:        api,
		tree:       tree,
		downloader: downloader,
		decider:    decider,
		state:      state,
		metrics:    m,
		log:        log.With(slog.String("item", "Scheduler")),
	}
}

// DownloadURL downloads everything parsed points to. Results of failed files have an empty path.
// An abort during metadata queries yields no results and no error.
func (s *scheduler) DownloadURL(ctx context.Context, parsed entity.ParsedURL) ([]entity.DownloadResult, error) {
	kind := "file"
	if parsed.IsFolder() {
		kind = "folder"
	}
	s.log.Info(fmt.Sprintf("Processing %s '%s'...", kind, parsed.Name))

	var (
		results []entity.DownloadResult
		err     error
	)

	if parsed.IsFolder() {
		if parsed.PinsFile() {
			s.log.Info(fmt.Sprintf("Pre-selected file %s...", parsed.FileKey))
		}
		results, err = s.downloadFolder(ctx, parsed)
	} else {
		results, err = s.downloadFile(ctx, parsed)
	}

	if errors.Is(err, common.ErrAborted) {
		s.log.Warn("Aborted while querying metadata")

		return nil, nil
	}

	return results, err
}

func (s *scheduler) downloadFile(ctx context.Context, parsed entity.ParsedURL) ([]entity.DownloadResult, error) {
	file, err := s.api.GetFileInfo(ctx, parsed.FileKey)
	if err != nil {
		return nil, fmt.Errorf("cannot get file info: %w", err)
	}

	file.NumInQueue = 1
	s.state.SetQueueSizes(1, 1)
	s.metrics.SetDiscovered(1)

	name, ok := util.SafeName(file.Filename)
	if !ok {
		name = file.QuickKey
		s.log.Warn("Unusable file name, saving under quick key", slog.String("name", file.Filename), slog.String("path", name))
	}
	out := filepath.Join(s.cfg.DestBase, name)

	if f := filter.MatchAny(file, s.cfg.Filters); f != nil {
		s.log.Info(fmt.Sprintf("File %s was filtered out by %s. Skipped!", file.Filename, f))
		s.metrics.FileDone(metrics.FileStatusFiltered)

		return []entity.DownloadResult{{Num: 1, Path: out}}, nil
	}

	if file.Links.NormalDownload == "" {
		s.log.Warn(fmt.Sprintf("File %s has no download link. Skipped!", file.Filename), slog.String("quickkey", file.QuickKey))
		s.metrics.FileDone(metrics.FileStatusFailed)

		results := []entity.DownloadResult{{Num: 1}}
		s.summary(results)

		return results, nil
	}

	params := entity.DownloadParams{
		Num:          1,
		NumOrig:      1,
		FileURL:      file.Links.NormalDownload,
		OutputPath:   out,
		ExpectedSize: file.Size.Int64(),
		FileHash:     file.Hash,
	}

	if s.cfg.Hooks.BeforeDownload != nil {
		s.cfg.Hooks.BeforeDownload(params)
	}

	results := []entity.DownloadResult{{Num: 1, Path: s.downloader.Download(ctx, params)}}
	s.summary(results)

	return results, nil
}

func (s *scheduler) downloadFolder(ctx context.Context, parsed entity.ParsedURL) ([]entity.DownloadResult, error) {
	folder, err := s.api.GetFolderInfo(ctx, parsed.FolderKey)
	if err != nil {
		return nil, fmt.Errorf("cannot get folder info: %w", err)
	}

	mapping, err := s.tree.BuildFileSystem(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("cannot build folder tree: %w", err)
	}

	files := mapping.Files()
	for i, n := range files {
		n.File.NumInQueue = i + 1
	}

	s.log.Info(fmt.Sprintf("%s: found %d files...", folder.Name, len(files)))
	s.metrics.SetDiscovered(len(files))

	if s.cfg.Hooks.AfterScan != nil {
		s.cfg.Hooks.AfterScan(folder, mapping)
	}

	subset := s.selectFiles(parsed, files)
	s.state.SetQueueSizes(len(subset), len(files))
	s.log.Info(fmt.Sprintf("Saving %d / %d files...", len(subset), len(files)))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []entity.DownloadResult
	)

	sem := semaphore.NewWeighted(int64(s.cfg.MaxJobs))
	num := 0

	for _, n := range mapping.Nodes() {
		if s.state.Aborted() {
			s.log.Warn("Aborted, no more files are scheduled")

			break
		}

		if !n.IsFile() {
			continue
		}

		if _, ok := subset[n.Path]; !ok {
			s.log.Debug(fmt.Sprintf("Skipping excluded node %s (%s)...", n.File, n.Path))

			continue
		}

		num++
		params := entity.DownloadParams{
			Num:          num,
			NumOrig:      n.File.NumInQueue,
			FileURL:      n.File.Links.NormalDownload,
			OutputPath:   filepath.FromSlash(n.Path),
			ExpectedSize: n.File.Size.Int64(),
			FileHash:     n.File.Hash,
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			res := entity.DownloadResult{Num: params.Num, Path: s.download(ctx, sem, params)}

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}()
	}

	wg.Wait()

	slices.SortFunc(results, func(a, b entity.DownloadResult) int {
		return cmp.Compare(a.Num, b.Num)
	})
	s.summary(results)

	return results, nil
}

func (s *scheduler) download(ctx context.Context, sem *semaphore.Weighted, params entity.DownloadParams) string {
	if s.cfg.Hooks.BeforeDownload != nil {
		s.cfg.Hooks.BeforeDownload(params)
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		s.log.Error("Cannot acquire job slot", slog.String("path", params.OutputPath), slog.Any("error", err))

		return ""
	}
	defer sem.Release(1)

	s.metrics.JobStarted()
	defer s.metrics.JobFinished()

	return s.downloader.Download(ctx, params)
}

// selectFiles builds the processing subset. files must be in queue order.
// A pinned file wins over filters, filters win over confirmation.
func (s *scheduler) selectFiles(parsed entity.ParsedURL, files []*entity.Node) map[string]struct{} {
	subset := make(map[string]struct{})
	enqueued := 0

	for i, n := range files {
		if s.state.Aborted() {
			break
		}

		idx := i + 1
		name := path.Base(n.Path)

		switch {
		case parsed.PinsFile():
			if n.File.QuickKey != parsed.FileKey {
				s.log.Debug(fmt.Sprintf("[%d] File '%s' is not selected for download, skipped...", idx, name))

				continue
			}
		case len(s.cfg.Filters) > 0:
			if f := filter.MatchAny(n.File, s.cfg.Filters); f != nil {
				s.log.Info(fmt.Sprintf("[%d] File %s was filtered out by %s. Skipped!", idx, name, f))
				s.metrics.FileDone(metrics.FileStatusFiltered)

				continue
			}
		default:
			if !s.decider.ConfirmDownload(idx, name, n.File.Size.Int64()) {
				continue
			}
		}

		enqueued++
		s.log.Info(fmt.Sprintf("[%d] %s enqueued (%s)...", enqueued, name, util.FormatMB(n.File.Size.Int64())))
		subset[n.Path] = struct{}{}
	}

	return subset
}

func (s *scheduler) summary(results []entity.DownloadResult) {
	ok := 0
	for _, r := range results {
		if r.OK() {
			ok++
		}
	}

	s.log.Info(fmt.Sprintf("Downloaded %d / %d files", ok, len(results)))
}
