package lint

import (
	"strings"

	"github.com/dshills/linthost/internal/integration/process"
)

// Tool describes one external checker.
type Tool struct {
	// Name identifies the tool in logs and metrics.
	Name string

	// Executable is the program to run.
	Executable string

	// Args are placed before the file path.
	Args []string

	// TrailingArgs are placed after the file path.
	TrailingArgs []string
}

// DefaultTools returns the standard PHP tool sequence: a style-rules tool,
// a coding-standard tool and a syntax-only check, in that order.
func DefaultTools() []Tool {
	return []Tool{
		{
			Name:         "phpmd",
			Executable:   "phpmd",
			TrailingArgs: []string{"xml", "cleancode,codesize,design,naming,unusedcode"},
		},
		{
			Name:       "phpcs",
			Executable: "phpcs",
			Args:       []string{"--report=xml"},
		},
		{
			Name:       "php",
			Executable: "php",
			Args:       []string{"-l"},
		},
	}
}

// ToolInvocation is one tool run against one file.
type ToolInvocation struct {
	// Tool is the tool name.
	Tool string

	// Executable is the program to run.
	Executable string

	// Args is the full argument list, file path included.
	Args []string
}

// BuildInvocation builds the invocation of tool against file.
func BuildInvocation(tool Tool, file string) ToolInvocation {
	args := make([]string, 0, len(tool.Args)+1+len(tool.TrailingArgs))
	args = append(args, tool.Args...)
	args = append(args, file)
	args = append(args, tool.TrailingArgs...)

	return ToolInvocation{
		Tool:       tool.Name,
		Executable: tool.Executable,
		Args:       args,
	}
}

// BuildInvocations expands a file into one invocation per tool, in order.
func BuildInvocations(tools []Tool, file string) []ToolInvocation {
	invs := make([]ToolInvocation, 0, len(tools))
	for _, t := range tools {
		invs = append(invs, BuildInvocation(t, file))
	}
	return invs
}

// Argv returns the executable followed by the arguments.
func (inv ToolInvocation) Argv() []string {
	argv := make([]string, 0, len(inv.Args)+1)
	argv = append(argv, inv.Executable)
	return append(argv, inv.Args...)
}

// CommandLine returns the shell-safe command line.
func (inv ToolInvocation) CommandLine() string {
	return JoinArgs(inv.Argv())
}

// Command converts the invocation into a process command.
func (inv ToolInvocation) Command() process.Command {
	return process.Command{
		Name: inv.Tool,
		Argv: inv.Argv(),
		Line: inv.CommandLine(),
	}
}

// JoinArgs quotes every element of argv and joins them with spaces.
func JoinArgs(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = QuoteArg(a)
	}
	return strings.Join(quoted, " ")
}

// QuoteArg makes s a single shell word. Arguments made only of safe
// characters are returned unchanged; everything else is single-quoted.
func QuoteArg(s string) string {
	if s == "" {
		return "''"
	}

	needsQuote := false
	for _, c := range s {
		if !isShellSafe(c) {
			needsQuote = true
			break
		}
	}
	if !needsQuote {
		return s
	}

	// 'foo'\''bar' -> foo'bar
	var b strings.Builder
	b.WriteByte('\'')
	for _, c := range s {
		if c == '\'' {
			b.WriteString(`'\''`)
		} else {
			b.WriteRune(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// isShellSafe reports whether c never needs quoting.
// ':' is excluded because of its meaning in some shell contexts.
func isShellSafe(c rune) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '/' || c == '=' || c == ','
}
