// Package sink delivers extraction records to the terminal or to dated files
// in an output directory.
package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lukemcguire/pageprobe/logging"
	"github.com/lukemcguire/pageprobe/result"
	"github.com/lukemcguire/pageprobe/tui"
	"github.com/lukemcguire/pageprobe/urlutil"
)

// Mode selects where records go.
type Mode int

const (
	Display Mode = iota
	TextFile
	JSONFile
)

func (m Mode) String() string {
	switch m {
	case Display:
		return "display"
	case TextFile:
		return "text"
	case JSONFile:
		return "json"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "display", "text" or "json".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "display", "":
		return Display, nil
	case "text", "txt":
		return TextFile, nil
	case "json":
		return JSONFile, nil
	}
	return 0, fmt.Errorf("unknown output mode %q (want display, text or json)", s)
}

// dateLayout is the date stamp in output file names.
const dateLayout = "2006-01-02"

// Sink writes records in one fixed mode.
type Sink struct {
	mode   Mode
	dir    string
	out    io.Writer
	plain  bool
	now    func() time.Time
	logger *logrus.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithDir sets the output directory for file modes (default ".").
func WithDir(dir string) Option {
	return func(s *Sink) {
		if dir != "" {
			s.dir = dir
		}
	}
}

// WithWriter sets the display destination (default os.Stdout).
func WithWriter(w io.Writer) Option {
	return func(s *Sink) { s.out = w }
}

// WithPlain renders display output without styling.
func WithPlain(plain bool) Option {
	return func(s *Sink) { s.plain = plain }
}

// WithNow sets the clock used for the date stamp.
func WithNow(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Sink for mode.
func New(mode Mode, opts ...Option) *Sink {
	s := &Sink{
		mode:   mode,
		dir:    ".",
		out:    os.Stdout,
		now:    time.Now,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the sink's output mode.
func (s *Sink) Mode() Mode { return s.mode }

// Emit delivers rec, extracted from sourceURL. File modes return the path
// written; display returns "".
func (s *Sink) Emit(rec result.Record, sourceURL string) (string, error) {
	switch s.mode {
	case TextFile:
		return s.writeFile(sourceURL, "txt", func(w io.Writer) error {
			return result.WriteText(w, rec)
		})
	case JSONFile:
		return s.writeFile(sourceURL, "json", func(w io.Writer) error {
			return result.WriteJSON(w, rec)
		})
	default:
		return "", s.display(rec, sourceURL)
	}
}

// EmitRaw saves an unmodified page body as HTML, whatever the mode.
func (s *Sink) EmitRaw(body []byte, sourceURL string) (string, error) {
	return s.writeFile(sourceURL, "html", func(w io.Writer) error {
		_, err := w.Write(body)
		return err
	})
}

// Path returns the file an artifact for sourceURL with extension ext would
// be written to today.
func (s *Sink) Path(sourceURL, ext string) string {
	name := fmt.Sprintf("%s.%s.%s", urlutil.SafeFilename(sourceURL), s.now().Format(dateLayout), ext)
	return filepath.Join(s.dir, name)
}

func (s *Sink) display(rec result.Record, sourceURL string) error {
	if s.plain {
		result.PrintRecord(s.out, rec)
		return nil
	}
	if _, err := io.WriteString(s.out, tui.RenderRecord(rec, sourceURL)+"\n"); err != nil {
		return result.NewError(result.KindPersistence, sourceURL, fmt.Errorf("write display output: %w", err))
	}
	return nil
}

func (s *Sink) writeFile(sourceURL, ext string, write func(io.Writer) error) (string, error) {
	path := s.Path(sourceURL, ext)
	if err := writeAtomic(path, write); err != nil {
		return "", result.NewError(result.KindPersistence, path, err)
	}
	s.logger.WithFields(logrus.Fields{"url": sourceURL, "path": path}).Info("output written")
	return path, nil
}

// writeAtomic writes to a temp file beside path and renames it into place
// once closed, so readers never see a partial file.
func writeAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	buf := bufio.NewWriter(tmp)
	if err = write(buf); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err = buf.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
