package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lukemcguire/pageprobe/config"
	"github.com/lukemcguire/pageprobe/crawler"
	"github.com/lukemcguire/pageprobe/logging"
	"github.com/lukemcguire/pageprobe/result"
	"github.com/lukemcguire/pageprobe/session"
	"github.com/lukemcguire/pageprobe/sink"
	"github.com/lukemcguire/pageprobe/tui"
)

// flagValues holds the persistent flags; only flags the user set override
// the loaded configuration.
type flagValues struct {
	output    string
	outDir    string
	mobile    bool
	userAgent string
	timeout   time.Duration
	logLevel  string
	plain     bool
}

type app struct {
	flags  flagValues
	cfg    config.Config
	logger *logrus.Logger
	mode   sink.Mode
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "pageprobe",
		Short: "Inspect a single web page: crawl metadata, scrape content, audit SEO",
		Long: "pageprobe fetches one page at a time, honouring robots.txt and pausing between requests,\n" +
			"and reports page metadata, readable content, an SEO audit, the raw HTML or a sitemap's routes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.flags.output, "output", "o", "display", "output mode: display|text|json")
	flags.StringVar(&a.flags.outDir, "out-dir", "", "directory for output files (default $PAGEPROBE_OUTPUT_DIR or .)")
	flags.BoolVar(&a.flags.mobile, "mobile", false, "send a random mobile User-Agent")
	flags.StringVar(&a.flags.userAgent, "user-agent", "", "fixed User-Agent (default: a random browser one)")
	flags.DurationVar(&a.flags.timeout, "timeout", config.DefaultTimeout, "per-request timeout")
	flags.StringVar(&a.flags.logLevel, "log-level", config.DefaultLogLevel, "log level: debug|info|warn|error")
	flags.BoolVar(&a.flags.plain, "plain", false, "plain output without spinner or tables")

	root.AddCommand(
		a.newPageCmd(crawler.ModeCrawl, "crawl <url>", "Report page metadata, links, images and sitemap URLs"),
		a.newPageCmd(crawler.ModeScrape, "scrape <url>", "Extract title, paragraphs, headings and lists"),
		a.newSEOCmd(),
		a.newPageCmd(crawler.ModeRawHTML, "get-html <url>", "Save the page's raw HTML"),
		a.newRoutesCmd(),
		a.newSessionCmd(),
	)
	return root
}

// setup loads configuration, applies flag overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	a.logger = logging.New(config.DefaultLogLevel)
	a.cfg = config.Load(a.logger)

	flags := cmd.Flags()
	if flags.Changed("out-dir") {
		a.cfg.OutputDir = a.flags.outDir
	}
	if flags.Changed("mobile") {
		a.cfg.Mobile = a.flags.mobile
	}
	if flags.Changed("user-agent") {
		a.cfg.UserAgent = a.flags.userAgent
	}
	if flags.Changed("timeout") {
		a.cfg.Timeout = a.flags.timeout
	}
	if flags.Changed("log-level") {
		a.cfg.LogLevel = a.flags.logLevel
	}
	a.logger.SetLevel(logging.ParseLevel(a.cfg.LogLevel))

	mode, err := sink.ParseMode(a.flags.output)
	if err != nil {
		return result.NewError(result.KindInvalidInput, "", err)
	}
	a.mode = mode

	a.logger.WithFields(logrus.Fields{
		"output":  mode.String(),
		"out_dir": a.cfg.OutputDir,
		"timeout": a.cfg.Timeout,
		"mobile":  a.cfg.Mobile,
	}).Debug("configuration loaded")
	return nil
}

func (a *app) newPageCmd(mode crawler.Mode, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPage(cmd, mode, args[0])
		},
	}
}

func (a *app) newSEOCmd() *cobra.Command {
	var noVerify bool
	cmd := a.newPageCmd(crawler.ModeSEO, "seo <url>", "Audit on-page SEO and check internal links")
	cmd.Flags().BoolVar(&noVerify, "no-verify-links", false, "skip the broken internal link check")
	cmd.PreRun = func(*cobra.Command, []string) {
		if noVerify {
			a.cfg.VerifyLinks = false
		}
	}
	return cmd
}

func (a *app) newRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes <sitemap-url>",
		Short: "Check the status of every route listed in a sitemap",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			progress := a.progressChannel()
			pipeline := a.newPipeline(progress)

			var report *result.RouteReport
			err := a.runTask(cmd.Context(), "routes", args[0], progress, func(ctx context.Context) error {
				var err error
				report, err = pipeline.Routes(ctx, args[0])
				return err
			})
			if err != nil {
				return err
			}
			return a.report(cmd, func(s *sink.Sink) (string, error) {
				return s.Emit(report, report.SitemapURL)
			})
		},
	}
}

func (a *app) newSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Log in with a form and run commands as the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			driver, err := session.New(
				tui.NewPrompter(nil, nil),
				a.newPipeline(nil),
				a.newSink(cmd.OutOrStdout()),
				session.WithTimeout(a.cfg.Timeout),
				session.WithLogger(a.logger),
				session.WithReporter(cmd.ErrOrStderr()),
			)
			if err != nil {
				return err
			}
			return driver.Run(cmd.Context())
		},
	}
}

func (a *app) runPage(cmd *cobra.Command, mode crawler.Mode, rawURL string) error {
	progress := a.progressChannel()
	pipeline := a.newPipeline(progress)

	var outcome *crawler.Outcome
	err := a.runTask(cmd.Context(), mode.String(), rawURL, progress, func(ctx context.Context) error {
		var err error
		outcome, err = pipeline.Run(ctx, crawler.Request{URL: rawURL, Mode: mode})
		return err
	})
	if err != nil {
		return err
	}

	return a.report(cmd, func(s *sink.Sink) (string, error) {
		if mode == crawler.ModeRawHTML {
			return s.EmitRaw(outcome.Raw, outcome.URL)
		}
		return s.Emit(outcome.Record, outcome.URL)
	})
}

func (a *app) report(cmd *cobra.Command, emit func(*sink.Sink) (string, error)) error {
	path, err := emit(a.newSink(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	if path != "" {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s\n", path)
	}
	return nil
}

func (a *app) newPipeline(progress chan<- crawler.Event) *crawler.Pipeline {
	return crawler.New(crawler.Config{
		UserAgent:      a.cfg.UserAgent,
		Mobile:         a.cfg.Mobile,
		RequestTimeout: a.cfg.Timeout,
		CourtesyDelay:  a.cfg.CourtesyDelay,
		VerifyLinks:    a.cfg.VerifyLinks,
		VerifyRate:     a.cfg.VerifyRate,
		Logger:         a.logger,
	}, nil, progress)
}

func (a *app) newSink(out io.Writer) *sink.Sink {
	return sink.New(a.mode,
		sink.WithDir(a.cfg.OutputDir),
		sink.WithWriter(out),
		sink.WithPlain(a.plain()),
		sink.WithLogger(a.logger),
	)
}

// plain reports whether the spinner and styled tables should be skipped.
func (a *app) plain() bool {
	return a.flags.plain || !isatty.IsTerminal(os.Stdout.Fd())
}

func (a *app) progressChannel() chan crawler.Event {
	if a.plain() {
		return nil
	}
	return make(chan crawler.Event, 16)
}

// runTask runs task, behind the progress spinner on a terminal. The
// spinner draws on stderr so stdout carries only the results.
func (a *app) runTask(ctx context.Context, title, rawURL string, progress chan crawler.Event, task func(context.Context) error) error {
	if progress == nil {
		return task(ctx)
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	run := func(ctx context.Context) error {
		defer close(progress)
		return task(ctx)
	}
	model := tui.NewModel(taskCtx, cancel, title, run, progress)
	final, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, tea.ErrProgramKilled) {
			return result.Aborted(rawURL)
		}
		return fmt.Errorf("run progress display: %w", err)
	}
	return final.(tui.Model).Err()
}
