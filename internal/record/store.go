// Package record reads and writes the governance records kept on disk:
// incident lifecycle status, multi-service coordination, service policies,
// review decisions and review finalization markers.
//
// The store holds no business logic. Every call re-reads from disk so that
// edits made outside the process are always observed.
package record

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned (wrapped) when a record file does not exist.
var ErrNotFound = errors.New("record not found")

// validKey matches alphanumeric, dash, underscore, and dot characters only.
var validKey = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateKey rejects incident and service identifiers that could escape the
// record directories.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key must not be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("key must not contain '..'")
	}
	if !validKey.MatchString(key) {
		return fmt.Errorf("key %q contains invalid characters: only alphanumeric, dash, underscore, and dot are allowed", key)
	}
	return nil
}

const (
	incidentsDir = "incidents"
	servicesDir  = "services"
	reportsDir   = "reports"

	statusSuffix       = ".status.yaml"
	coordinationSuffix = ".coordination.yaml"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithLoadObserver registers a callback invoked after every record read with
// the record kind and the time spent loading it.
func WithLoadObserver(fn func(kind string, d time.Duration)) Option {
	return func(s *Store) { s.observe = fn }
}

// Store resolves record paths under a workspace root.
type Store struct {
	root    string
	logger  *slog.Logger
	observe func(kind string, d time.Duration)
}

// NewStore creates a Store rooted at dir. The directory is not created; use
// Init for that.
func NewStore(root string, opts ...Option) *Store {
	if root == "" {
		root = "."
	}
	s := &Store{root: root, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the workspace root.
func (s *Store) Root() string {
	return s.root
}

// Init creates the incidents, services and reports directories.
func (s *Store) Init() error {
	for _, d := range []string{incidentsDir, servicesDir, reportsDir} {
		if err := os.MkdirAll(filepath.Join(s.root, d), 0o755); err != nil {
			return fmt.Errorf("create %s directory: %w", d, err)
		}
	}
	return nil
}

// StatusPath returns the workspace-relative path of an incident status record.
func StatusPath(incidentID string) string {
	return filepath.Join(incidentsDir, incidentID+statusSuffix)
}

// CoordinationPath returns the workspace-relative path of a coordination record.
func CoordinationPath(incidentID string) string {
	return filepath.Join(incidentsDir, incidentID+coordinationSuffix)
}

// ServicePolicyPath returns the workspace-relative path of a service policy.
func ServicePolicyPath(service string) string {
	return filepath.Join(servicesDir, service+".yaml")
}

// ReviewMarkerPath returns the workspace-relative path of the review record
// for one service within an incident.
func ReviewMarkerPath(incidentID, service string) string {
	return filepath.Join(reportsDir, "review-record-"+incidentID+"-"+service+".yaml")
}

// IncidentsDir returns the absolute-or-root-relative incidents directory.
func (s *Store) IncidentsDir() string {
	return filepath.Join(s.root, incidentsDir)
}

// ReportsDir returns the reports directory.
func (s *Store) ReportsDir() string {
	return filepath.Join(s.root, reportsDir)
}

func (s *Store) abs(rel string) string {
	return filepath.Join(s.root, rel)
}

// read loads a record file. A missing file yields an error wrapping ErrNotFound.
func (s *Store) read(kind, rel string) ([]byte, error) {
	start := time.Now()
	data, err := os.ReadFile(s.abs(rel))
	if s.observe != nil {
		s.observe(kind, time.Since(start))
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", rel, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	s.logger.Debug("record loaded", "kind", kind, "path", rel, "bytes", len(data))
	return data, nil
}

// writeAtomic writes data to a temp file in the target directory and renames
// it over the destination, so readers never observe a partial record.
func (s *Store) writeAtomic(rel string, data []byte) error {
	path := s.abs(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", rel, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", rel, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", rel, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", rel, err)
	}
	s.logger.Debug("record written", "path", rel, "bytes", len(data))
	return nil
}

// ReportFile resolves rel against reports/. Absolute paths and paths that
// leave reports/ are rejected.
func (s *Store) ReportFile(rel string) (string, error) {
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("report path %q must be relative to %s/ and stay inside it", rel, reportsDir)
	}
	return filepath.Join(s.ReportsDir(), rel), nil
}

// ListIncidents returns the sorted ids of every incident with a status or
// coordination record.
func (s *Store) ListIncidents() ([]string, error) {
	entries, err := os.ReadDir(s.IncidentsDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, statusSuffix):
			seen[strings.TrimSuffix(name, statusSuffix)] = true
		case strings.HasSuffix(name, coordinationSuffix):
			seen[strings.TrimSuffix(name, coordinationSuffix)] = true
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ListServices returns the sorted names of every service with a policy record.
func (s *Store) ListServices() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, servicesDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}
