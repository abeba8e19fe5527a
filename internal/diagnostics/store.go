package diagnostics

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dshills/linthost/internal/lint"
)

// Marker is an annotation attached to a line of an open file.
type Marker struct {
	// Line is the 0-based line.
	Line int

	Message  string
	Severity lint.Severity
}

// String formats the marker as "line: severity: message" with a 1-based
// line.
func (m Marker) String() string {
	return fmt.Sprintf("%d: %s: %s", m.Line+1, m.Severity, m.Message)
}

// FileMarkers holds the markers of one open file.
type FileMarkers struct {
	Path      string
	Markers   []Marker
	UpdatedAt time.Time
	Version   int

	ErrorCount   int
	WarningCount int
}

func (fm *FileMarkers) clone() *FileMarkers {
	out := *fm
	out.Markers = make([]Marker, len(fm.Markers))
	copy(out.Markers, fm.Markers)
	return &out
}

// Summary aggregates marker counts across open files.
type Summary struct {
	Files    int
	Errors   int
	Warnings int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithChangeHandler sets a callback invoked after the markers of a file
// change. It runs without the store lock held.
func WithChangeHandler(fn func(path string, markers []Marker)) StoreOption {
	return func(s *Store) {
		s.onChange = fn
	}
}

// WithMaxMarkersPerFile limits the markers kept per file. Further
// annotations are discarded.
func WithMaxMarkersPerFile(max int) StoreOption {
	return func(s *Store) {
		s.maxPerFile = max
	}
}

// Store keeps annotations for open files. Annotations for files that are
// not open are ignored.
type Store struct {
	mu         sync.RWMutex
	files      map[string]*FileMarkers
	maxPerFile int
	onChange   func(path string, markers []Marker)
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		files:      make(map[string]*FileMarkers),
		maxPerFile: 1000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalize(path string) string {
	return filepath.Clean(path)
}

// Open marks path as open. Opening an already open file keeps its markers.
func (s *Store) Open(path string) {
	path = normalize(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[path]; !ok {
		s.files[path] = &FileMarkers{Path: path, UpdatedAt: time.Now()}
	}
}

// Close forgets path and its markers.
func (s *Store) Close(path string) {
	path = normalize(path)

	s.mu.Lock()
	delete(s.files, path)
	s.mu.Unlock()
}

// IsOpen reports whether path is open.
func (s *Store) IsOpen(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[normalize(path)]
	return ok
}

// ClearAnnotations removes every marker of path.
func (s *Store) ClearAnnotations(path string) {
	path = normalize(path)

	s.mu.Lock()
	fm, ok := s.files[path]
	if !ok {
		s.mu.Unlock()
		return
	}
	fm.Markers = nil
	fm.ErrorCount = 0
	fm.WarningCount = 0
	fm.Version++
	fm.UpdatedAt = time.Now()
	handler := s.onChange
	s.mu.Unlock()

	if handler != nil {
		handler(path, nil)
	}
}

// AddAnnotation adds a marker to path at a 0-based line.
func (s *Store) AddAnnotation(path string, line int, message string, severity lint.Severity) {
	path = normalize(path)

	s.mu.Lock()
	fm, ok := s.files[path]
	if !ok || (s.maxPerFile > 0 && len(fm.Markers) >= s.maxPerFile) {
		s.mu.Unlock()
		return
	}

	m := Marker{Line: line, Message: message, Severity: severity}
	// Insert after existing markers on the same line to keep arrival order.
	idx := sort.Search(len(fm.Markers), func(i int) bool {
		return fm.Markers[i].Line > line
	})
	fm.Markers = append(fm.Markers, Marker{})
	copy(fm.Markers[idx+1:], fm.Markers[idx:])
	fm.Markers[idx] = m

	if severity == lint.SeverityWarning {
		fm.WarningCount++
	} else {
		fm.ErrorCount++
	}
	fm.Version++
	fm.UpdatedAt = time.Now()

	handler := s.onChange
	var snapshot []Marker
	if handler != nil {
		snapshot = make([]Marker, len(fm.Markers))
		copy(snapshot, fm.Markers)
	}
	s.mu.Unlock()

	if handler != nil {
		handler(path, snapshot)
	}
}

// Markers returns the markers of path sorted by line.
func (s *Store) Markers(path string) []Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fm, ok := s.files[normalize(path)]
	if !ok || len(fm.Markers) == 0 {
		return nil
	}
	out := make([]Marker, len(fm.Markers))
	copy(out, fm.Markers)
	return out
}

// File returns a copy of the marker state of path.
func (s *Store) File(path string) (*FileMarkers, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fm, ok := s.files[normalize(path)]
	if !ok {
		return nil, false
	}
	return fm.clone(), true
}

// MarkersAtLine returns the markers on a 0-based line.
func (s *Store) MarkersAtLine(path string, line int) []Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fm, ok := s.files[normalize(path)]
	if !ok {
		return nil
	}

	var out []Marker
	for _, m := range fm.Markers {
		if m.Line == line {
			out = append(out, m)
		}
	}
	return out
}

// NextMarker returns the first marker after line, wrapping to the top of
// the file when wrap is set.
func (s *Store) NextMarker(path string, line int, wrap bool) (Marker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fm, ok := s.files[normalize(path)]
	if !ok || len(fm.Markers) == 0 {
		return Marker{}, false
	}

	for _, m := range fm.Markers {
		if m.Line > line {
			return m, true
		}
	}
	if wrap {
		return fm.Markers[0], true
	}
	return Marker{}, false
}

// HasErrors reports whether path has an error marker.
func (s *Store) HasErrors(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fm, ok := s.files[normalize(path)]
	return ok && fm.ErrorCount > 0
}

// Files returns the open paths in sorted order.
func (s *Store) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Summary returns marker counts across every open file.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{Files: len(s.files)}
	for _, fm := range s.files {
		sum.Errors += fm.ErrorCount
		sum.Warnings += fm.WarningCount
	}
	return sum
}
