package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studio/internal/domain"
	"studio/internal/engine"
	"studio/internal/infra"
	"studio/internal/orchestrator"
)

// Exit codes: 0 completed, 2 partial, 1 failed or unusable input.
const (
	exitCompleted = 0
	exitFailed    = 1
	exitPartial   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run writes the result JSON to stdout and everything else to stderr.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		category = fs.String("category", "", "business category, e.g. tea-stall, bakery, other")
		other    = fs.String("other", "", "description when -category=other")
		message  = fs.String("message", "", "what the business wants to announce")
		lang     = fs.String("lang", "english", "target language, e.g. hindi or ta-IN")
		timeout  = fs.Duration("timeout", 0, "override the pipeline budget")
		quiet    = fs.Bool("quiet", false, "suppress progress lines")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitCompleted
		}
		return exitFailed
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailed
	}
	if *timeout > 0 {
		cfg.Pipeline.Budget = *timeout
	}
	// Progress goes to stderr; keep structured logs quiet unless asked.
	level := cfg.App.LogLevel
	if level == "" {
		level = "warn"
	}
	logger := infra.NewLogger("cli", level).Output(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := engine.New(ctx, cfg, nil, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailed
	}
	defer eng.Close()

	var obs orchestrator.ProgressObserver = orchestrator.NopObserver{}
	if !*quiet {
		obs = orchestrator.ObserverFunc(func(ev orchestrator.ProgressEvent) {
			fmt.Fprintln(stderr, orchestrator.FormatProgress(ev))
		})
	}

	req := domain.NewGenerationRequest(domain.RequestInput{
		Category:       *category,
		CategoryOther:  *other,
		RawMessage:     *message,
		TargetLanguage: *lang,
	}, time.Now())

	res, err := eng.Sequencer.Submit(ctx, req, obs)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailed
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailed
	}
	return exitCode(res.Status)
}

func exitCode(status domain.ResultStatus) int {
	switch status {
	case domain.StatusCompleted:
		return exitCompleted
	case domain.StatusPartial:
		return exitPartial
	default:
		return exitFailed
	}
}
