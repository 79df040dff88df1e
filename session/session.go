// Package session logs in to a site with a form POST and then runs
// interactive commands through the authenticated client.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"

	"github.com/lukemcguire/pageprobe/crawler"
	"github.com/lukemcguire/pageprobe/logging"
	"github.com/lukemcguire/pageprobe/result"
	"github.com/lukemcguire/pageprobe/urlutil"
)

// State is a step of the session lifecycle.
type State int

const (
	Unauthenticated State = iota
	AwaitingCredentials
	LoggingIn
	Authenticated
	AwaitingCommand
	Dispatching
	Terminated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AwaitingCredentials:
		return "awaiting-credentials"
	case LoggingIn:
		return "logging-in"
	case Authenticated:
		return "authenticated"
	case AwaitingCommand:
		return "awaiting-command"
	case Dispatching:
		return "dispatching"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Credentials describe a login form and what to fill it with.
type Credentials struct {
	LoginURL      string
	RedirectURL   string // where a successful login lands
	UsernameField string
	PasswordField string
	Username      string
	Password      string
}

// Command is one request typed at the session prompt. A URL of "exit" or
// "quit" ends the session.
type Command struct {
	URL  string
	Mode string
}

// IsExit reports whether the command ends the session.
func (c Command) IsExit() bool {
	switch strings.ToLower(strings.TrimSpace(c.URL)) {
	case "exit", "quit":
		return true
	}
	return false
}

// Prompter collects input from the user. Implementations return an error
// matching result.ErrAborted when the user interrupts.
type Prompter interface {
	Credentials(ctx context.Context) (Credentials, error)
	NextCommand(ctx context.Context) (Command, error)
}

// Runner executes one pipeline request.
type Runner interface {
	Run(ctx context.Context, req crawler.Request) (*crawler.Outcome, error)
}

// Emitter delivers what a command produced.
type Emitter interface {
	Emit(rec result.Record, sourceURL string) (string, error)
}

const defaultTimeout = 15 * time.Second

// Driver owns the authenticated client and the command loop.
type Driver struct {
	client   *http.Client
	prompter Prompter
	runner   Runner
	emitter  Emitter
	logger   *logrus.Logger
	report   io.Writer

	state     State
	loginHost string
}

// Option configures a Driver.
type Option func(*Driver)

// WithTransport sets the round tripper of the session client.
func WithTransport(rt http.RoundTripper) Option {
	return func(d *Driver) { d.client.Transport = rt }
}

// WithTimeout bounds each request of the session client.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		if timeout > 0 {
			d.client.Timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithReporter sets where per-command messages go (default os.Stderr).
func WithReporter(w io.Writer) Option {
	return func(d *Driver) { d.report = w }
}

// New creates a Driver with a fresh cookie jar.
func New(prompter Prompter, runner Runner, emitter Emitter, opts ...Option) (*Driver, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	d := &Driver{
		client:   &http.Client{Jar: jar, Timeout: defaultTimeout},
		prompter: prompter,
		runner:   runner,
		emitter:  emitter,
		logger:   logging.Discard(),
		report:   os.Stderr,
		state:    Unauthenticated,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// State returns the current lifecycle state.
func (d *Driver) State() State { return d.state }

// Client returns the session client, carrying the login cookies.
func (d *Driver) Client() *http.Client { return d.client }

// Run prompts for credentials, logs in and serves commands until the user
// exits or interrupts. A failed login ends the session with a
// login_failed error; an interrupt ends it cleanly.
func (d *Driver) Run(ctx context.Context) error {
	d.state = AwaitingCredentials
	creds, err := d.prompter.Credentials(ctx)
	if err != nil {
		d.state = Terminated
		if interrupted(ctx, err) {
			return nil
		}
		return fmt.Errorf("read credentials: %w", err)
	}

	if err := d.Login(ctx, creds); err != nil {
		d.state = Terminated
		if result.IsAborted(err) {
			return nil
		}
		return err
	}
	return d.serve(ctx)
}

// Login submits the credentials as a form POST. It succeeds only when the
// final response URL is exactly the expected redirect and the status is
// below 400; there is no retry.
func (d *Driver) Login(ctx context.Context, creds Credentials) error {
	d.state = LoggingIn

	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(creds.LoginURL)), "http://") {
		return result.NewError(result.KindLoginFailed, creds.LoginURL, urlutil.ErrInsecureScheme)
	}
	loginURL := urlutil.EnsureScheme(creds.LoginURL)
	expected := strings.TrimSpace(creds.RedirectURL)
	if !strings.Contains(expected, "/") {
		expected += "/"
	}
	expected = urlutil.EnsureScheme(expected)

	form := url.Values{}
	form.Set(creds.UsernameField, creds.Username)
	form.Set(creds.PasswordField, creds.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return result.NewError(result.KindLoginFailed, loginURL, fmt.Errorf("create login request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return result.Aborted(loginURL)
		}
		return result.NewError(result.KindLoginFailed, loginURL, fmt.Errorf("submit login form: %w", err))
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()

	final := resp.Request.URL.String()
	log := d.logger.WithFields(logrus.Fields{"url": loginURL, "status": resp.StatusCode, "landed": final})
	if final != expected || resp.StatusCode >= http.StatusBadRequest {
		log.Warn("login failed")
		return &result.Error{
			Kind:       result.KindLoginFailed,
			URL:        loginURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("landed on %s, expected %s", final, expected),
		}
	}

	if parsed, err := url.Parse(loginURL); err == nil {
		d.loginHost = parsed.Hostname()
	}
	d.state = Authenticated
	log.Info("logged in")
	return nil
}

func (d *Driver) serve(ctx context.Context) error {
	for {
		d.state = AwaitingCommand
		cmd, err := d.prompter.NextCommand(ctx)
		if err != nil {
			d.state = Terminated
			if interrupted(ctx, err) {
				return nil
			}
			return fmt.Errorf("read command: %w", err)
		}
		if cmd.IsExit() {
			d.state = Terminated
			return nil
		}

		target, err := urlutil.NormalizeSecure(cmd.URL)
		if err != nil {
			result.PrintError(d.report, result.NewError(result.KindInvalidInput, cmd.URL, err))
			continue
		}
		mode, err := crawler.ParseMode(cmd.Mode)
		if err == nil && mode == crawler.ModeRawHTML {
			err = errors.New("get-html is not available in a session")
		}
		if err != nil {
			result.PrintError(d.report, result.NewError(result.KindInvalidInput, target, err))
			continue
		}
		if d.loginHost != "" && !urlutil.IsSameDomain(target, d.loginHost) {
			d.logger.WithFields(logrus.Fields{"url": target, "login_host": d.loginHost}).
				Warn("target is outside the login domain, session cookies will not be sent")
		}

		d.state = Dispatching
		if err := d.dispatch(ctx, target, mode); err != nil {
			if result.IsAborted(err) {
				d.state = Terminated
				return nil
			}
			if result.IsTransport(result.KindOf(err)) {
				d.logger.WithFields(logrus.Fields{"url": target, "kind": result.KindOf(err)}).Warn("command failed")
			}
			result.PrintError(d.report, err)
		}
	}
}

func (d *Driver) dispatch(ctx context.Context, target string, mode crawler.Mode) error {
	out, err := d.runner.Run(ctx, crawler.Request{URL: target, Mode: mode, Client: d.client})
	if err != nil {
		return err
	}
	path, err := d.emitter.Emit(out.Record, out.URL)
	if err != nil {
		return err
	}
	if path != "" {
		_, _ = fmt.Fprintf(d.report, "Saved %s\n", path)
	}
	return nil
}

func interrupted(ctx context.Context, err error) bool {
	return result.IsAborted(err) || ctx.Err() != nil
}
