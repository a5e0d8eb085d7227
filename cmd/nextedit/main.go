// Package main is the nextedit replay tool: it feeds a recorded editor
// session (a JSON-lines event script) through the suggestion engine and
// reports every suggestion the session would have produced.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/dshills/nextedit/internal/config"
	"github.com/dshills/nextedit/internal/provider"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts, ok := parseFlags()
	if !ok {
		return 2
	}
	if opts.showVersion {
		fmt.Printf("nextedit %s (%s, %s)\n", version, commit, date)
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	logger := newLogger(cfg.Logging)

	backend, err := newBackend(opts, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	in := os.Stdin
	if opts.scriptPath != "" && opts.scriptPath != "-" {
		f, err := os.Open(opts.scriptPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer f.Close()
		in = f
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	rp := newReplay(cfg, backend, logger, os.Stdout)
	defer rp.Close()

	if opts.watchConfig && opts.configPath != "" {
		w, err := config.Watch(opts.configPath, logger, rp.applyConfig)
		if err != nil {
			logger.Warn("config watch disabled", "err", err)
		} else {
			defer w.Close()
		}
	}

	if err := rp.Run(ctx, in); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	rp.Summary()
	return 0
}

type options struct {
	configPath   string
	scriptPath   string
	providerKind string
	watchConfig  bool
	showVersion  bool
}

func parseFlags() (options, bool) {
	var opts options
	fs := flag.NewFlagSet("nextedit", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&opts.scriptPath, "script", "", "Event script to replay ('-' or empty for stdin)")
	fs.StringVar(&opts.providerKind, "provider", "null", "Suggestion provider (null, http, openai); empty defers to config")
	fs.BoolVar(&opts.watchConfig, "watch-config", false, "Reload the configuration file on change")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information")
	fs.BoolVar(&opts.showVersion, "v", false, "Show version information (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "nextedit - next-edit suggestion engine replay tool\n\n")
		fmt.Fprintf(os.Stderr, "Usage: nextedit [options] [script.jsonl]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  nextedit session.jsonl                Replay with the null provider\n")
		fmt.Fprintf(os.Stderr, "  nextedit -provider http -c cfg.toml   Replay against a live backend\n")
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		return options{}, false
	}
	if args := fs.Args(); len(args) > 0 && opts.scriptPath == "" {
		opts.scriptPath = args[0]
	}
	return opts, true
}

func newLogger(lc config.LoggingSection) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "nextedit",
	})
	switch lc.Level {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
	if lc.Format == "json" {
		logger.SetFormatter(log.JSONFormatter)
	}
	return logger
}

// newBackend selects the suggestion provider: the -provider flag wins
// over the config, and "null" runs fully offline.
func newBackend(opts options, cfg config.Config, logger *log.Logger) (provider.Provider, error) {
	kind := cfg.Provider.Kind
	if opts.providerKind != "" {
		kind = opts.providerKind
	}
	switch kind {
	case "null":
		return nullBackend{}, nil
	case "http":
		if cfg.Provider.Endpoint == "" {
			return nil, fmt.Errorf("the http provider requires an endpoint (config or %sENDPOINT)", config.EnvPrefix)
		}
		return provider.NewHTTPBackend(provider.HTTPBackendConfig{
			Endpoint: cfg.Provider.Endpoint,
			Logger:   logger,
		}), nil
	case "openai":
		return provider.NewOpenAIBackend(provider.OpenAIBackendConfig{
			APIKey: cfg.Provider.APIKey,
			Model:  cfg.Provider.Model,
			Logger: logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", kind)
	}
}

// nullBackend completes every request with no suggestions, for replay
// runs that only exercise gating and caching.
type nullBackend struct{}

func (nullBackend) StreamEdits(_ context.Context, _ provider.Request) *provider.EditStream {
	return provider.FailedStream(provider.Completion{Reason: provider.ReasonNoSuggestions})
}
