package lint

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const (
	// parseErrorMarker starts a fatal syntax error emitted by the PHP CLI.
	parseErrorMarker = "PHP Parse error:"

	// locationMarker introduces the file location clause.
	locationMarker = " in "

	// pmdLinter is the root tag of phpmd XML reports.
	pmdLinter = "pmd"
)

var onLinePattern = regexp.MustCompile(`[ \t]*on line ([0-9]+)`)

// Report is the classified output of one tool run.
// It is either a SingleError or a Violations value.
type Report interface {
	// Diagnostics returns the diagnostics carried by the report.
	Diagnostics() []Diagnostic

	isReport()
}

// SingleError is a fatal parse error reported as a single line.
type SingleError struct {
	// Tool is the tool that produced the output.
	Tool string

	// Line is the 0-based line, or -1 when no usable line was found.
	Line int

	// Message is the error text without the location clause.
	Message string
}

func (SingleError) isReport() {}

// Diagnostics returns at most one error diagnostic.
func (e SingleError) Diagnostics() []Diagnostic {
	if e.Line < 0 {
		return nil
	}
	return []Diagnostic{{
		Line:     e.Line,
		Message:  e.Message,
		Severity: SeverityError,
		Tool:     e.Tool,
	}}
}

// Violations is a structured multi-violation report.
type Violations struct {
	// Linter is the root element tag of the report.
	Linter string

	// Items are the extracted diagnostics.
	Items []Diagnostic
}

func (Violations) isReport() {}

// Diagnostics returns a copy of the extracted diagnostics.
func (v Violations) Diagnostics() []Diagnostic {
	if len(v.Items) == 0 {
		return nil
	}
	out := make([]Diagnostic, len(v.Items))
	copy(out, v.Items)
	return out
}

// Classify interprets the captured output of one tool run.
//
// Output containing a PHP parse error with a location clause becomes a
// SingleError. Anything else is parsed as an XML report; output that is not
// a usable report yields an empty Violations value. Classify never fails.
//
// The parse error message ends at the last " in " before "on line". PHP
// messages may themselves contain " in " (a previous declaration site, for
// example), which this keeps intact; the cost is that a file path
// containing " in " leaves its leading part in the message.
func Classify(tool, output string) Report {
	if strings.Contains(output, parseErrorMarker) && strings.Contains(output, locationMarker) {
		return classifyParseError(tool, output)
	}
	return classifyXML(tool, output)
}

func classifyParseError(tool, output string) SingleError {
	result := SingleError{Tool: tool, Line: -1}

	start := strings.Index(output, parseErrorMarker)
	rest := output[start:]

	m := onLinePattern.FindStringSubmatchIndex(rest)
	if m == nil {
		return result
	}

	line, ok := zeroBasedLine(rest[m[2]:m[3]])
	if !ok {
		return result
	}

	// The message ends at the location clause, the last " in " before
	// "on line". Without one it ends at "on line".
	head := rest[:m[0]]
	if idx := strings.LastIndex(head, locationMarker); idx >= 0 {
		head = head[:idx]
	}

	result.Line = line
	result.Message = strings.TrimSpace(head)
	return result
}

func classifyXML(tool, output string) Violations {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(output); err != nil {
		return Violations{}
	}

	root := doc.Root()
	if root == nil {
		return Violations{}
	}

	children := root.ChildElements()
	if len(children) == 0 {
		return Violations{Linter: root.Tag}
	}

	linter := root.Tag
	lineAttr := "line"
	if linter == pmdLinter {
		lineAttr = "beginline"
	}

	report := Violations{Linter: linter}
	for _, v := range children[0].ChildElements() {
		line, ok := zeroBasedLine(v.SelectAttrValue(lineAttr, ""))
		if !ok {
			continue
		}

		report.Items = append(report.Items, Diagnostic{
			Line:     line,
			Message:  strings.TrimSpace(v.Text()),
			Severity: violationSeverity(linter, v),
			Tool:     tool,
		})
	}

	return report
}

// violationSeverity applies the per-linter severity rule. phpmd grades by
// priority (1 is highest); other reports use the element tag.
func violationSeverity(linter string, v *etree.Element) Severity {
	if linter == pmdLinter {
		priority, err := strconv.Atoi(strings.TrimSpace(v.SelectAttrValue("priority", "1")))
		if err != nil {
			priority = 1
		}
		if priority > 2 {
			return SeverityWarning
		}
		return SeverityError
	}

	if v.Tag == "warning" {
		return SeverityWarning
	}
	return SeverityError
}

// zeroBasedLine converts a 1-based line string.
func zeroBasedLine(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}
