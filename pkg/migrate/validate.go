package migrate

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

const (
	versionLayout = "20060102150405"

	markerUp    = "-- +goose Up"
	markerDown  = "-- +goose Down"
	markerBegin = "-- +goose StatementBegin"
	markerEnd   = "-- +goose StatementEnd"
)

var migrationFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// File is a migration discovered in a source directory.
type File struct {
	Version int64
	Name    string
}

// Validate checks every .sql file in source and reports all problems at once.
// Each file needs a well-formed name, a unique version, an Up section with
// at least one statement, a Down section, and balanced statement blocks.
func Validate(source fs.FS) ([]File, error) {
	entries, err := fs.ReadDir(source, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var (
		files []File
		errs  error
		seen  = make(map[int64]string)
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		name := entry.Name()
		m := migrationFileRe.FindStringSubmatch(name)
		if m == nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: expected YYYYMMDDHHMMSS_lower_snake_name.sql", name))
			continue
		}
		version, _ := strconv.ParseInt(m[1], 10, 64)
		if prev, dup := seen[version]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%s: version %d already used by %s", name, version, prev))
			continue
		}
		seen[version] = name

		body, err := fs.ReadFile(source, name)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		errs = multierr.Append(errs, checkSections(name, body))
		files = append(files, File{Version: version, Name: name})
	}

	slices.SortFunc(files, func(a, b File) int {
		switch {
		case a.Version < b.Version:
			return -1
		case a.Version > b.Version:
			return 1
		}
		return 0
	})
	return files, errs
}

// ValidateDir is Validate over a directory on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	_, err := Validate(DirSource(dir))
	return err
}

func checkSections(name string, body []byte) error {
	var (
		errs       error
		section    string
		open       bool
		upHasSQL   bool
		sawUp      bool
		sawDown    bool
		scanner    = bufio.NewScanner(bytes.NewReader(body))
		lineNumber int
	)
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case markerUp:
			if sawUp {
				errs = multierr.Append(errs, fmt.Errorf("%s:%d: second Up marker", name, lineNumber))
			}
			if sawDown {
				errs = multierr.Append(errs, fmt.Errorf("%s:%d: Up must come before Down", name, lineNumber))
			}
			sawUp, section = true, "up"
			continue
		case markerDown:
			if open {
				errs = multierr.Append(errs, fmt.Errorf("%s:%d: Down inside an open statement block", name, lineNumber))
				open = false
			}
			sawDown, section = true, "down"
			continue
		case markerBegin:
			if open {
				errs = multierr.Append(errs, fmt.Errorf("%s:%d: nested StatementBegin", name, lineNumber))
			}
			open = true
			continue
		case markerEnd:
			if !open {
				errs = multierr.Append(errs, fmt.Errorf("%s:%d: StatementEnd without StatementBegin", name, lineNumber))
			}
			open = false
			continue
		}
		if section == "up" && line != "" && !strings.HasPrefix(line, "--") {
			upHasSQL = true
		}
	}
	if err := scanner.Err(); err != nil {
		return multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
	}

	if !sawUp {
		errs = multierr.Append(errs, fmt.Errorf("%s: missing %q", name, markerUp))
	} else if !upHasSQL {
		errs = multierr.Append(errs, fmt.Errorf("%s: Up section has no statements", name))
	}
	if !sawDown {
		errs = multierr.Append(errs, fmt.Errorf("%s: missing %q", name, markerDown))
	}
	if open {
		errs = multierr.Append(errs, fmt.Errorf("%s: unterminated StatementBegin", name))
	}
	return errs
}
