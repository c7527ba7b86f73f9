package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/jgivc/mfdl/internal/app"
	"github.com/jgivc/mfdl/internal/common"
	"github.com/jgivc/mfdl/internal/config"
	"github.com/jgivc/mfdl/internal/entity"
)

const (
	Version = "v0.3.0"

	exitOK      = 0
	exitFatal   = 1
	exitInvalid = 2
)

type Options struct {
	ConfigFile    string            `short:"c" long:"config" description:"Path to config file" default:"config.yml"`
	Dest          string            `short:"d" long:"dest" description:"Destination base directory, must exist"`
	Retries       int               `short:"r" long:"retries" description:"Retry count per request" default:"-1"`
	MaxJobs       int               `short:"j" long:"jobs" description:"Maximum concurrent downloads"`
	Timeout       time.Duration     `short:"t" long:"timeout" description:"Request timeout"`
	NoDelay       bool              `long:"nodelay" description:"Disable request spacing"`
	NoConfirm     bool              `short:"y" long:"noconfirm" description:"Do not ask questions"`
	Proxy         string            `short:"p" long:"proxy" description:"Proxy url (http, https, socks5)"`
	Headers       map[string]string `short:"H" long:"header" description:"Extra header, name:value"`
	Cookies       map[string]string `long:"cookie" description:"Extra cookie, name:value"`
	Mode          string            `short:"m" long:"mode" description:"Download mode" choice:"full" choice:"touch" choice:"skip"`
	LogLevel      string            `short:"l" long:"log-level" description:"Log level" choice:"debug" choice:"info" choice:"warn" choice:"error"`
	RedisURL      string            `long:"redis" description:"Redis url for request spacing shared between processes"`
	MetricsListen string            `long:"metrics-listen" description:"Address of the metrics and status endpoint"`
	Version       bool              `short:"v" long:"version" description:"Show version"`

	Args struct {
		URL string `positional-arg-name:"url" description:"Folder or file link"`
	} `positional-args:"yes"`
}

func (o *Options) apply(cfg *config.Config) {
	if o.Dest != "" {
		cfg.DestBase = o.Dest
	}

	if o.Retries >= 0 {
		cfg.Retries = o.Retries
	}

	if o.MaxJobs > 0 {
		cfg.MaxJobs = o.MaxJobs
	}

	if o.Timeout > 0 {
		cfg.Timeout = o.Timeout
	}

	if o.Proxy != "" {
		cfg.Proxy = o.Proxy
	}

	if o.Mode != "" {
		cfg.DownloadMode = entity.DownloadMode(o.Mode)
	}

	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}

	if o.RedisURL != "" {
		cfg.RedisURL = o.RedisURL
	}

	if o.MetricsListen != "" {
		cfg.MetricsListen = o.MetricsListen
	}

	cfg.NoDelay = cfg.NoDelay || o.NoDelay
	cfg.NoConfirm = cfg.NoConfirm || o.NoConfirm

	cfg.Headers = merge(cfg.Headers, o.Headers)
	cfg.Cookies = merge(cfg.Cookies, o.Cookies)
}

func merge(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}

	if dst == nil {
		dst = make(map[string]string, len(src))
	}

	for k, v := range src {
		dst[k] = v
	}

	return dst
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Name = "mfdl"
	parser.Usage = "[OPTIONS] url"

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && errors.Is(flagsErr.Type, flags.ErrHelp) {
			return exitOK
		}

		return exitInvalid
	}

	if opts.Version {
		fmt.Printf("mfdl %s\n", Version)

		return exitOK
	}

	if opts.Args.URL == "" {
		fmt.Fprintln(os.Stderr, "url is required")
		parser.WriteHelp(os.Stderr)

		return exitInvalid
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot load config: %s\n", err)

		return exitInvalid
	}

	opts.apply(cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %s\n", err)

		return exitInvalid
	}

	a := app.New(cfg, os.Stdin, os.Stdout)
	if err := a.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot start: %s\n", err)

		return exitFatal
	}
	defer a.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(c)

	go func() {
		aborted := false

		for sig := range c {
			switch sig {
			case syscall.SIGUSR1:
				st := a.Status()
				fmt.Fprintf(os.Stderr, "%s: %d / %d files queued, aborted: %v\n", st.URL, st.QueueSize, st.QueueSizeOrig, st.Aborted)
			case syscall.SIGTERM, syscall.SIGINT:
				if aborted {
					fmt.Fprintln(os.Stderr, "Received second termination signal. Cancelling downloads...")
					cancel()

					return
				}

				fmt.Fprintln(os.Stderr, "Received termination signal. Finishing active downloads...")
				aborted = true
				a.Abort()
			}
		}
	}()

	results, err := a.Run(ctx, opts.Args.URL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed: %s\n", err)

		var ve *common.ValidationError
		if errors.As(err, &ve) {
			return exitInvalid
		}

		return exitFatal
	}

	ok := 0
	for _, r := range results {
		if r.OK() {
			ok++
		}
	}
	fmt.Printf("Downloaded %d / %d files\n", ok, len(results))

	return exitOK
}
