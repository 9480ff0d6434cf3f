package logsource

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/spf13/afero"

	"github.com/tinytelemetry/loglatency/internal/model"
)

// DateLayout is the layout of the date embedded in rotated log names.
const DateLayout = "20060102"

var (
	// ErrLogDirMissing is returned when the log directory does not exist.
	ErrLogDirMissing = errors.New("logsource: log directory does not exist")

	// ErrNoLogFound is returned when no dated log file matches the prefix.
	ErrNoLogFound = errors.New("logsource: no dated log file found")
)

// namePattern matches "<prefix>.log-YYYYMMDD" with an optional .gz or .zst suffix.
func namePattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `\.log-(\d{8})(\.gz|\.zst)?$`)
}

// FindAll returns every dated log in dir, oldest first. When a date exists
// both plain and compressed, the plain file wins.
func FindAll(fs afero.Fs, dir, prefix string) ([]model.LogFile, error) {
	ok, err := afero.DirExists(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("logsource: stat %s: %w", dir, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLogDirMissing, dir)
	}

	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("logsource: read %s: %w", dir, err)
	}

	re := namePattern(prefix)
	byDate := make(map[time.Time]model.LogFile)
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		m := re.FindStringSubmatch(info.Name())
		if m == nil {
			continue
		}
		date, err := time.Parse(DateLayout, m[1])
		if err != nil {
			// 20171345 and friends
			continue
		}

		lf := model.LogFile{
			Name:        info.Name(),
			Path:        filepath.Join(dir, info.Name()),
			Date:        date,
			Compression: CompressionOf(info.Name()),
		}
		if prev, seen := byDate[date]; seen && prev.Compression == CompressionNone {
			continue
		}
		byDate[date] = lf
	}

	files := make([]model.LogFile, 0, len(byDate))
	for _, lf := range byDate {
		files = append(files, lf)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Date.Before(files[j].Date) })
	return files, nil
}

// FindLatest returns the log with the greatest embedded date. Modification
// times and directory order are ignored.
func FindLatest(fs afero.Fs, dir, prefix string) (model.LogFile, error) {
	files, err := FindAll(fs, dir, prefix)
	if err != nil {
		return model.LogFile{}, err
	}
	if len(files) == 0 {
		return model.LogFile{}, fmt.Errorf("%w in %s", ErrNoLogFound, dir)
	}
	return files[len(files)-1], nil
}
