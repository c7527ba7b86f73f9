package download

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/jgivc/mfdl/internal/adapter/htmladapter"
	"github.com/jgivc/mfdl/internal/adapter/httpadapter"
	"github.com/jgivc/mfdl/internal/common"
	"github.com/jgivc/mfdl/internal/entity"
	"github.com/jgivc/mfdl/internal/metrics"
	"github.com/jgivc/mfdl/internal/util"
)

const (
	requestKind = "file"

	chunkSize        = 512 * util.KB
	progressEvery    = 100
	progressTailSize = 1 * util.MB

	dirPerm  = 0755
	filePerm = 0644
)

type Requester interface {
	Get(ctx context.Context, kind, url string, headers map[string]string) (*http.Response, error)
}

type Decider interface {
	ConfirmOverwrite(existsMsg string) bool
}

type Metrics interface {
	FileDone(status string)
	AddBytes(n int)
}

type Config struct {
	Mode      entity.DownloadMode
	NoConfirm bool
}

type fileDownloader struct {
	cfg     Config
	fs      afero.Fs
	req     Requester
	retrier *httpadapter.Retrier
	decider Decider
	state   *entity.RunState
	metrics Metrics
	log     *slog.Logger
}

func NewFileDownloader(cfg Config, fs afero.Fs, req Requester, retrier *httpadapter.Retrier, decider Decider,
	state *entity.RunState, m Metrics, log *slog.Logger) *fileDownloader {
	if m == nil {
		m = (*metrics.Metrics)(nil)
	}

	return &fileDownloader{
		cfg:     cfg,
		fs:      fs,
		req:     req,
		retrier: retrier,
		decider: decider,
		state:   state,
		metrics: m,
		log:     log.With(slog.String("item", "FileDownloader")),
	}
}

// Download saves one file and returns its local path. A failed file yields an empty path,
// it is never reported as an error.
func (d *fileDownloader) Download(ctx context.Context, params entity.DownloadParams) string {
	out := params.OutputPath

	if d.cfg.Mode == entity.DownloadModeSkip || d.state.Aborted() {
		d.metrics.FileDone(metrics.FileStatusSkipped)

		return out
	}

	name := filepath.Base(out)
	touch := d.cfg.Mode == entity.DownloadModeTouch

	if params.FileURL == "" && !touch {
		d.log.Error(fmt.Sprintf("FAILED to download %s: no download link!", name))
		d.metrics.FileDone(metrics.FileStatusFailed)

		return ""
	}

	if proceed := d.checkExisting(params, touch); !proceed {
		d.metrics.FileDone(metrics.FileStatusSkipped)

		return out
	}

	touchMsg, sizeMsg := "", ""
	if touch {
		touchMsg, sizeMsg = " <touch>", "0.00 / "
	}
	d.log.Info(fmt.Sprintf("[%d / %d] ([%d / %d]) Saving%s %s => %s (%s%s)...",
		params.Num, d.state.QueueSize(), params.NumOrig, d.state.QueueSizeOrig(),
		touchMsg, name, out, sizeMsg, util.FormatMB(params.ExpectedSize)))

	if err := d.fs.MkdirAll(filepath.Dir(out), dirPerm); err != nil {
		d.log.Error("Cannot create directory", slog.String("path", out), slog.Any("error", err))
		d.metrics.FileDone(metrics.FileStatusFailed)

		return ""
	}

	if touch {
		return d.touch(out)
	}

	_, err := d.retrier.Do(ctx, name, func(ctx context.Context, b *httpadapter.Budget) *httpadapter.Failure {
		return d.attempt(ctx, params, b)
	})
	if err != nil && !errors.Is(err, common.ErrConnection) {
		d.log.Warn("Download interrupted", slog.String("name", name), slog.Any("error", err))
	}

	return d.verify(params)
}

// checkExisting reports whether the download should go on.
func (d *fileDownloader) checkExisting(params entity.DownloadParams, touch bool) bool {
	out := params.OutputPath

	st, err := d.fs.Stat(out)
	if err != nil || !st.Mode().IsRegular() {
		return true
	}

	size := st.Size()
	if touch && size == 0 {
		return true
	}

	match := "COMPLETE"
	if size != params.ExpectedSize {
		match = "MISMATCH!"
	}

	existsMsg := fmt.Sprintf("%s already exists, size: %s (%s)", out, util.FormatMB(size), match)
	d.log.Info(existsMsg)

	if d.cfg.NoConfirm && size == params.ExpectedSize {
		return false
	}

	if !d.decider.ConfirmOverwrite(existsMsg) {
		d.log.Warn(fmt.Sprintf("%s was skipped", filepath.Base(out)))

		return false
	}

	d.log.Warn(fmt.Sprintf("Overwriting %s...", filepath.Base(out)))

	return true
}

func (d *fileDownloader) touch(out string) string {
	f, err := d.fs.OpenFile(out, os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		d.log.Error("Cannot touch file", slog.String("path", out), slog.Any("error", err))
		d.metrics.FileDone(metrics.FileStatusFailed)

		return ""
	}
	f.Close()

	now := time.Now()
	if err := d.fs.Chtimes(out, now, now); err != nil {
		d.log.Warn("Cannot update file times", slog.String("path", out), slog.Any("error", err))
	}

	d.metrics.FileDone(metrics.FileStatusTouched)

	return out
}

func (d *fileDownloader) attempt(ctx context.Context, params entity.DownloadParams, b *httpadapter.Budget) *httpadapter.Failure {
	resp, err := d.req.Get(ctx, requestKind, params.FileURL, map[string]string{"Accept-Encoding": "gzip"})
	if err != nil {
		return httpadapter.Classify(err, 0)
	}
	defer resp.Body.Close()

	if err := httpadapter.CheckStatus(resp); err != nil {
		return httpadapter.Classify(err, resp.StatusCode)
	}

	if resp.Header.Get("Content-Disposition") != "" {
		body, err := decodeBody(resp)
		if err != nil {
			return httpadapter.Classify(err, resp.StatusCode)
		}

		return d.stream(body, params, b)
	}

	target, f := d.resolve(ctx, resp, params)
	if f != nil {
		return f
	}
	defer target.Body.Close()

	return d.stream(target.Body, params, b)
}

// resolve follows the download link of an html wrapper page.
func (d *fileDownloader) resolve(ctx context.Context, resp *http.Response, params entity.DownloadParams) (*http.Response, *httpadapter.Failure) {
	if enc := resp.Header.Get("Content-Encoding"); enc != "gzip" {
		return nil, httpadapter.Classify(fmt.Errorf("unexpected content encoding '%s'", enc), resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, httpadapter.Classify(&httpadapter.TransportError{Op: "payload", Err: err}, resp.StatusCode)
	}

	link, err := htmladapter.ResolveLink(payload)
	if err != nil {
		return nil, httpadapter.Classify(fmt.Errorf("cannot resolve %s: %w", params.FileURL, err), resp.StatusCode)
	}

	d.log.Debug("Resolved download link", slog.String("url", params.FileURL), slog.String("link", link))

	target, err := d.req.Get(ctx, requestKind, link, nil)
	if err != nil {
		return nil, httpadapter.Classify(err, 0)
	}

	if err := httpadapter.CheckStatus(target); err != nil {
		target.Body.Close()

		return nil, httpadapter.Classify(err, target.StatusCode)
	}

	if target.ContentLength != params.ExpectedSize {
		d.log.Warn(fmt.Sprintf("Expected size mismatch at soup URL %s: %d != %d!", link, target.ContentLength, params.ExpectedSize))
	}

	return target, nil
}

func decodeBody(resp *http.Response) (io.Reader, error) {
	if resp.Header.Get("Content-Encoding") != "gzip" {
		return resp.Body, nil
	}

	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, &httpadapter.TransportError{Op: "payload", Err: err}
	}

	return zr, nil
}

func (d *fileDownloader) stream(body io.Reader, params entity.DownloadParams, b *httpadapter.Budget) *httpadapter.Failure {
	out := params.OutputPath
	name := filepath.Base(out)

	f, err := d.fs.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return httpadapter.Classify(fmt.Errorf("cannot open %s: %w", out, err), 0)
	}
	defer f.Close()

	buf := make([]byte, chunkSize)

	var written int64
	for i := 1; ; i++ {
		n, rerr := readChunk(body, buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return httpadapter.Classify(fmt.Errorf("cannot write %s: %w", out, err), 0)
			}

			written += int64(n)
			d.metrics.AddBytes(n)

			if b.Used() > 0 {
				b.Reset()
			}

			if i%progressEvery == 1 || written+progressTailSize >= params.ExpectedSize {
				d.log.Info(fmt.Sprintf("[%d / %d] %s chunk %d: +%d (%.2f / %s)...",
					params.Num, d.state.QueueSize(), name, i, n, float64(written)/util.MB, util.FormatMB(params.ExpectedSize)))
			}
		}

		if rerr == io.EOF {
			return nil
		}

		if rerr != nil {
			return httpadapter.Classify(&httpadapter.TransportError{Op: "payload", Err: rerr}, 0)
		}
	}
}

// readChunk fills buf unless the body ends first.
func readChunk(r io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}

	return n, nil
}

func (d *fileDownloader) verify(params entity.DownloadParams) string {
	out := params.OutputPath
	name := filepath.Base(out)

	st, err := d.fs.Stat(out)
	if err != nil {
		d.log.Error(fmt.Sprintf("FAILED to download %s!", name))
		d.metrics.FileDone(metrics.FileStatusFailed)

		return ""
	}

	total := st.Size()
	if total == params.ExpectedSize {
		d.log.Info(fmt.Sprintf("%s completed (%s)", name, util.FormatMB(total)))
		d.metrics.FileDone(metrics.FileStatusDownloaded)
	} else {
		d.log.Info(fmt.Sprintf("%s NOT completed (%s)", name, util.FormatMB(total)))
		d.metrics.FileDone(metrics.FileStatusIncomplete)
	}

	return out
}
