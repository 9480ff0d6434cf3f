// Package report renders latency report entries into an HTML page.
package report

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"

	"github.com/tinytelemetry/loglatency/internal/model"
)

// TableMarker is replaced by the JSON encoded entries.
const TableMarker = "$table_json"

// NameDateLayout is the date format substituted into report names.
const NameDateLayout = "2006.01.02"

const defaultFileMode = 0o644

//go:embed report.html
var defaultTemplate string

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WriteError is returned for any failure that prevents a report from being
// written. No partial report file is left behind when it is returned.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("report: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// DefaultTemplate returns the built-in report template.
func DefaultTemplate() string { return defaultTemplate }

// LoadTemplate reads the template at path, or returns the built-in one when
// path is empty. The template must contain TableMarker.
func LoadTemplate(fs afero.Fs, path string) (string, error) {
	if path == "" {
		return defaultTemplate, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", &WriteError{Path: path, Op: "read template", Err: err}
	}

	tmpl := string(data)
	if !strings.Contains(tmpl, TableMarker) {
		return "", &WriteError{Path: path, Op: "read template", Err: fmt.Errorf("marker %s not found", TableMarker)}
	}
	return tmpl, nil
}

// Name expands the date placeholder of pattern. Both "{date}" and the
// bare "{}" are recognised.
func Name(pattern string, date time.Time) string {
	d := date.Format(NameDateLayout)
	name := strings.ReplaceAll(pattern, "{date}", d)
	return strings.ReplaceAll(name, "{}", d)
}

// Exists reports whether a report file is already present at path.
func Exists(fs afero.Fs, path string) (bool, error) {
	_, err := fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Renderer substitutes report entries into a template.
type Renderer struct {
	fs       afero.Fs
	template string
}

// NewRenderer creates a renderer writing to fs.
func NewRenderer(fs afero.Fs, template string) *Renderer {
	return &Renderer{fs: fs, template: template}
}

// Render returns the report body for entries.
func (r *Renderer) Render(entries []model.ReportEntry) ([]byte, error) {
	if entries == nil {
		entries = []model.ReportEntry{}
	}
	table, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	return []byte(strings.ReplaceAll(r.template, TableMarker, string(table))), nil
}

// Write renders entries and stores them at path. The body goes to a
// temporary file in the same directory which is renamed into place, so
// readers never see a partial report.
func (r *Renderer) Write(path string, entries []model.ReportEntry) error {
	body, err := r.Render(entries)
	if err != nil {
		return &WriteError{Path: path, Op: "encode", Err: err}
	}

	dir := filepath.Dir(path)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return &WriteError{Path: dir, Op: "mkdir", Err: err}
	}

	tmp, err := afero.TempFile(r.fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &WriteError{Path: path, Op: "create", Err: err}
	}
	tmpName := tmp.Name()

	fail := func(op string, err error) error {
		_ = tmp.Close()
		_ = r.fs.Remove(tmpName)
		return &WriteError{Path: path, Op: op, Err: err}
	}

	if _, err := tmp.Write(body); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		_ = r.fs.Remove(tmpName)
		return &WriteError{Path: path, Op: "close", Err: err}
	}
	if err := r.fs.Chmod(tmpName, defaultFileMode); err != nil {
		_ = r.fs.Remove(tmpName)
		return &WriteError{Path: path, Op: "chmod", Err: err}
	}
	if err := r.fs.Rename(tmpName, path); err != nil {
		_ = r.fs.Remove(tmpName)
		return &WriteError{Path: path, Op: "rename", Err: err}
	}
	return nil
}
