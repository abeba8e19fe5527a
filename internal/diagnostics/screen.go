package diagnostics

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/linthost/internal/lint"
)

const (
	signColumnWidth = 2
	tabWidth        = 4
)

var (
	styleDefault    = tcell.StyleDefault
	styleLineNumber = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleCurrentNum = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleSignError  = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleSignWarn   = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleStatus     = tcell.StyleDefault.Reverse(true)
)

// Screen renders one file with a sign column on a tcell screen. It is a
// lint.Sink for that file only.
type Screen struct {
	mu      sync.Mutex
	screen  tcell.Screen
	path    string
	lines   []string
	markers map[int][]Marker
	cursor  int
	top     int
}

// NewScreen creates a screen sink showing content as the text of path.
// The tcell screen must already be initialised.
func NewScreen(screen tcell.Screen, path string, content []byte) *Screen {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	return &Screen{
		screen:  screen,
		path:    filepath.Clean(path),
		lines:   strings.Split(text, "\n"),
		markers: make(map[int][]Marker),
	}
}

func (s *Screen) owns(path string) bool {
	return filepath.Clean(path) == s.path
}

// ClearAnnotations removes every sign.
func (s *Screen) ClearAnnotations(path string) {
	if !s.owns(path) {
		return
	}
	s.mu.Lock()
	s.markers = make(map[int][]Marker)
	s.drawLocked()
	s.mu.Unlock()
}

// AddAnnotation adds a sign at a 0-based line.
func (s *Screen) AddAnnotation(path string, line int, message string, severity lint.Severity) {
	if !s.owns(path) {
		return
	}
	s.mu.Lock()
	s.markers[line] = append(s.markers[line], Marker{Line: line, Message: message, Severity: severity})
	s.drawLocked()
	s.mu.Unlock()
}

// Cursor returns the 0-based cursor line.
func (s *Screen) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// MoveCursor moves the cursor by delta lines, clamped to the file.
func (s *Screen) MoveCursor(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCursorLocked(s.cursor + delta)
	s.drawLocked()
}

// NextMarker moves the cursor to the next annotated line, wrapping to the
// top. It reports false when the file has no annotations.
func (s *Screen) NextMarker() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.markers) == 0 {
		return false
	}
	first := -1
	next := -1
	for line := range s.markers {
		if first < 0 || line < first {
			first = line
		}
		if line > s.cursor && (next < 0 || line < next) {
			next = line
		}
	}
	if next < 0 {
		next = first
	}
	s.setCursorLocked(next)
	s.drawLocked()
	return true
}

// Draw redraws the whole screen.
func (s *Screen) Draw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawLocked()
}

// Run handles key events until q, Escape or Ctrl-C is pressed or ctx is
// cancelled.
func (s *Screen) Run(ctx context.Context) error {
	s.Draw()

	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	defer close(quit)
	go s.screen.ChannelEvents(events, quit)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if s.handleEvent(ev) {
				return nil
			}
		}
	}
}

// handleEvent applies one event and reports whether the view should close.
func (s *Screen) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		s.screen.Sync()
		s.Draw()
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return true
		case tcell.KeyUp:
			s.MoveCursor(-1)
		case tcell.KeyDown:
			s.MoveCursor(1)
		case tcell.KeyPgUp:
			s.MoveCursor(-s.pageSize())
		case tcell.KeyPgDn:
			s.MoveCursor(s.pageSize())
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return true
			case 'k':
				s.MoveCursor(-1)
			case 'j':
				s.MoveCursor(1)
			case 'n':
				s.NextMarker()
			}
		}
	}
	return false
}

func (s *Screen) pageSize() int {
	_, h := s.screen.Size()
	if h <= 2 {
		return 1
	}
	return h - 1
}

func (s *Screen) setCursorLocked(line int) {
	if line >= len(s.lines) {
		line = len(s.lines) - 1
	}
	if line < 0 {
		line = 0
	}
	s.cursor = line

	_, h := s.screen.Size()
	rows := h - 1
	if rows < 1 {
		rows = 1
	}
	if s.cursor < s.top {
		s.top = s.cursor
	}
	if s.cursor >= s.top+rows {
		s.top = s.cursor - rows + 1
	}
}

func (s *Screen) numberWidth() int {
	return len(strconv.Itoa(len(s.lines)))
}

func (s *Screen) drawLocked() {
	w, h := s.screen.Size()
	if w <= 0 || h <= 0 {
		return
	}
	s.screen.Clear()

	numWidth := s.numberWidth()
	textStart := signColumnWidth + numWidth + 1
	rows := h - 1

	for y := 0; y < rows; y++ {
		line := s.top + y
		if line >= len(s.lines) {
			break
		}

		if sign, style, ok := s.signLocked(line); ok {
			s.screen.SetContent(0, y, sign, nil, style)
		}

		numStyle := styleLineNumber
		if line == s.cursor {
			numStyle = styleCurrentNum
		}
		num := fmt.Sprintf("%*d", numWidth, line+1)
		putString(s.screen, signColumnWidth, y, w, num, numStyle)

		text := strings.ReplaceAll(s.lines[line], "\t", strings.Repeat(" ", tabWidth))
		putString(s.screen, textStart, y, w, text, styleDefault)
	}

	status := s.statusLocked()
	for x := 0; x < w; x++ {
		s.screen.SetContent(x, h-1, ' ', nil, styleStatus)
	}
	putString(s.screen, 0, h-1, w, status, styleStatus)

	s.screen.Show()
}

// signLocked returns the gutter sign of a line. Errors take precedence
// over warnings.
func (s *Screen) signLocked(line int) (rune, tcell.Style, bool) {
	ms := s.markers[line]
	if len(ms) == 0 {
		return 0, styleDefault, false
	}
	for _, m := range ms {
		if m.Severity == lint.SeverityError {
			return 'E', styleSignError, true
		}
	}
	return 'W', styleSignWarn, true
}

func (s *Screen) statusLocked() string {
	if ms := s.markers[s.cursor]; len(ms) > 0 {
		m := ms[0]
		return fmt.Sprintf(" %d: %s: %s", m.Line+1, m.Severity, m.Message)
	}

	var errs, warns int
	for _, ms := range s.markers {
		for _, m := range ms {
			if m.Severity == lint.SeverityWarning {
				warns++
			} else {
				errs++
			}
		}
	}
	return fmt.Sprintf(" %s  %d error(s), %d warning(s)", s.path, errs, warns)
}

func putString(screen tcell.Screen, x, y, maxX int, s string, style tcell.Style) {
	for _, r := range s {
		if x >= maxX {
			return
		}
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}
