package entity

import (
	"fmt"
	"sync/atomic"
	"time"
)

type DownloadMode string

const (
	DownloadModeFull  DownloadMode = "full"
	DownloadModeTouch DownloadMode = "touch"
	DownloadModeSkip  DownloadMode = "skip"
)

func (m DownloadMode) Valid() bool {
	switch m {
	case DownloadModeFull, DownloadModeTouch, DownloadModeSkip:
		return true
	}

	return false
}

// DownloadParams is everything a downloader needs for one file.
// Num is the position in the filtered queue, NumOrig the position in discovery order.
type DownloadParams struct {
	Num          int
	NumOrig      int
	FileURL      string
	OutputPath   string
	ExpectedSize int64
	FileHash     string
}

func (p DownloadParams) String() string {
	return fmt.Sprintf("#%d (%d) %s -> %s", p.Num, p.NumOrig, p.FileURL, p.OutputPath)
}

// DownloadResult is the outcome of one scheduled file. An empty Path means the file failed.
type DownloadResult struct {
	Num  int
	Path string
}

func (r DownloadResult) OK() bool {
	return r.Path != ""
}

// RunState is shared by every task of one run.
type RunState struct {
	aborted       atomic.Bool
	queueSize     atomic.Int64
	queueSizeOrig atomic.Int64
}

func (s *RunState) Abort() {
	s.aborted.Store(true)
}

func (s *RunState) Aborted() bool {
	return s.aborted.Load()
}

func (s *RunState) SetQueueSizes(size, orig int) {
	s.queueSize.Store(int64(size))
	s.queueSizeOrig.Store(int64(orig))
}

func (s *RunState) QueueSize() int {
	return int(s.queueSize.Load())
}

func (s *RunState) QueueSizeOrig() int {
	return int(s.queueSizeOrig.Load())
}

// RunStatus is a snapshot of a run for status reporting.
type RunStatus struct {
	RunID         string    `json:"run_id"`
	URL           string    `json:"url"`
	Started       time.Time `json:"started"`
	QueueSize     int       `json:"queue_size"`
	QueueSizeOrig int       `json:"queue_size_orig"`
	Aborted       bool      `json:"aborted"`
}
