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

	"jsoncal/internal/calendar"
	"jsoncal/internal/config"
	"jsoncal/internal/ics"
	"jsoncal/internal/jsonschema"
	appLog "jsoncal/internal/log"
	"jsoncal/internal/rule"
	"jsoncal/internal/web"
)

// flagConfig holds CLI flag values. Non-empty values override the config
// file.
type flagConfig struct {
	configPath string
	listen     string
	logLevel   string
	failFast   bool

	schema bool
	check  bool
	diff   bool
	target string
	reused string
	io     string

	toICS bool
	serve bool
}

func main() {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one CLI invocation and returns the process exit status:
// 0 success, 1 invalid input or contract mismatch, 2 usage error.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags, files, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	conf := config.DefaultConfig()
	if flags.configPath != "" {
		conf, err = config.Load(flags.configPath)
		if err != nil {
			appLog.Error("failed to load config", err, "config_path", flags.configPath)
			return 1
		}
	}
	if err := applyFlags(conf, flags); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Debug("effective config",
		"listen", conf.Listen,
		"fail_fast", conf.Validation.FailFast,
		"schema_target", conf.Schema.Target,
		"schema_reused", conf.Schema.Reused,
		"schema_io", conf.Schema.IO,
		"files", len(files),
	)

	if !flags.schema && !flags.check && !flags.serve && len(files) == 0 {
		fmt.Fprintln(stderr, "usage: jsoncal [flags] [file|url|-]...")
		return 2
	}

	p := newPrinter(stderr)
	status := 0

	if flags.schema {
		data, err := jsonschema.Export(calendar.Calendar, conf.ExportOptions()).JSON()
		if err != nil {
			p.failed("schema", err)
			return 1
		}
		fmt.Fprintln(stdout, string(data))
	}

	if flags.check && !checkContract(conf, flags.diff, p) {
		status = 1
	}

	fetcher := ics.NewFetcher(nil)
	for _, name := range files {
		if !validateOne(ctx, name, conf, flags.toICS, fetcher, stdin, stdout, p) {
			status = 1
		}
	}

	if flags.serve {
		if err := web.StartServer(ctx, conf); err != nil {
			appLog.Error("HTTP server failed", err, "listen", conf.Listen)
			return 1
		}
	}
	return status
}

func parseFlags(args []string, stderr io.Writer) (flagConfig, []string, error) {
	var cfg flagConfig

	fs := flag.NewFlagSet("jsoncal", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.configPath, "config", "", "Path to config file (created with defaults if missing)")
	fs.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	fs.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.BoolVar(&cfg.failFast, "fail-fast", false, "Report only the first issue per document")
	fs.BoolVar(&cfg.schema, "schema", false, "Print the exported JSON Schema")
	fs.BoolVar(&cfg.check, "check", false, "Check the exported schema against the canonical contract")
	fs.BoolVar(&cfg.diff, "diff", false, "With -check, print a line diff of contract and export")
	fs.StringVar(&cfg.target, "target", "", "Schema draft: draft-2020-12 or draft-07")
	fs.StringVar(&cfg.reused, "reused", "", "Shared fragments: ref or inline")
	fs.StringVar(&cfg.io, "io", "", "Schema side: input or output")
	fs.BoolVar(&cfg.toICS, "ics", false, "Print valid documents as iCalendar instead of JSON")
	fs.BoolVar(&cfg.serve, "serve", false, "Serve the HTTP API")

	if err := fs.Parse(args); err != nil {
		return cfg, nil, err
	}
	return cfg, fs.Args(), nil
}

func applyFlags(conf *config.Config, flags flagConfig) error {
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
	if flags.failFast {
		conf.Validation.FailFast = true
	}
	if flags.target != "" {
		switch jsonschema.Target(flags.target) {
		case jsonschema.Draft202012, jsonschema.Draft07:
			conf.Schema.Target = flags.target
		default:
			return fmt.Errorf("unknown -target %q", flags.target)
		}
	}
	if flags.reused != "" {
		switch jsonschema.Reused(flags.reused) {
		case jsonschema.ReusedRef, jsonschema.ReusedInline:
			conf.Schema.Reused = flags.reused
		default:
			return fmt.Errorf("unknown -reused %q", flags.reused)
		}
	}
	if flags.io != "" {
		switch jsonschema.IO(flags.io) {
		case jsonschema.IOInput, jsonschema.IOOutput:
			conf.Schema.IO = flags.io
		default:
			return fmt.Errorf("unknown -io %q", flags.io)
		}
	}
	conf.Normalize()
	return nil
}

func checkContract(conf *config.Config, showDiff bool, p *printer) bool {
	canonical, err := conf.CanonicalSchema()
	if err != nil {
		p.failed("contract", err)
		return false
	}
	generated := jsonschema.Export(calendar.Calendar, conf.ExportOptions())
	ms := jsonschema.CheckContract(generated, canonical)

	if showDiff {
		want, err1 := canonical.JSON()
		got, err2 := generated.JSON()
		if err := errors.Join(err1, err2); err != nil {
			p.failed("contract", err)
			return false
		}
		p.diff(string(want), string(got))
	}

	if len(ms) > 0 {
		p.mismatches(ms)
		return false
	}
	p.valid("contract", "export matches canonical schema")
	return true
}

func validateOne(ctx context.Context, name string, conf *config.Config, toICS bool, fetcher *ics.Fetcher, stdin io.Reader, stdout io.Writer, p *printer) bool {
	src, err := readSource(ctx, name, stdin, fetcher)
	if err != nil {
		p.failed(name, err)
		return false
	}

	cal, err := src.validate(conf.ValidationOptions())
	if err != nil {
		var verr *rule.ValidationError
		if errors.As(err, &verr) {
			p.invalid(name, verr.Issues)
		} else {
			p.failed(name, err)
		}
		return false
	}

	if toICS {
		out, err := ics.Encode(cal, conf.EncodeOptions())
		if err != nil {
			p.failed(name, err)
			return false
		}
		fmt.Fprint(stdout, out)
	} else {
		data, err := json.MarshalIndent(cal, "", "  ")
		if err != nil {
			p.failed(name, err)
			return false
		}
		fmt.Fprintln(stdout, string(data))
	}
	p.valid(name, fmt.Sprintf("%d event(s)", len(cal.Events)))
	return true
}
