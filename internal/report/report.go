// Package report formata o resultado do check e decide o código de saída.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Sena-ops/leakguard/internal/model"
	"github.com/Sena-ops/leakguard/internal/sarif"
	"github.com/Sena-ops/leakguard/internal/scanner"
)

const (
	ExitOK         = 0
	ExitViolations = 1
	ExitError      = 2
)

const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatSARIF    = "sarif"
)

var Formats = []string{FormatText, FormatJSON, FormatMarkdown, FormatSARIF}

const (
	ToolName    = "leakguard"
	ToolVersion = "0.1.0"
)

type Summary struct {
	Modules []scanner.ModuleResult
	Total   int
	Errors  int
	Strict  bool
}

func NewSummary(results []scanner.ModuleResult, strict bool) Summary {
	s := Summary{Modules: results, Strict: strict}
	for _, r := range results {
		s.Total += len(r.Violations)
		s.Errors += len(r.Errors)
	}
	return s
}

// ExitCode: 2 se houve erro de leitura em modo estrito, 1 se houve violação,
// 0 caso contrário. Módulo ausente não conta.
func (s Summary) ExitCode() int {
	if s.Strict && s.Errors > 0 {
		return ExitError
	}
	if s.Total > 0 {
		return ExitViolations
	}
	return ExitOK
}

func (s Summary) Violations() []model.Violation {
	var out []model.Violation
	for _, m := range s.Modules {
		out = append(out, m.Violations...)
	}
	return out
}

func ValidFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

func Write(w io.Writer, format string, s Summary) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		return writeText(w, s)
	case FormatJSON:
		return writeJSON(w, s)
	case FormatMarkdown:
		return writeMarkdown(w, s)
	case FormatSARIF:
		return sarif.Write(w, sarif.Build(s.Violations(), ToolName, ToolVersion))
	}
	return fmt.Errorf("formato '%s' não suportado (use %s)", format, strings.Join(Formats, ", "))
}

func writeText(w io.Writer, s Summary) error {
	var b strings.Builder
	for _, m := range s.Modules {
		fmt.Fprintf(&b, "Checking %s for platform leaks...\n", m.Module)
		if m.Missing {
			fmt.Fprintf(&b, "Warning: %s does not exist.\n", m.Root)
			continue
		}
		if len(m.Violations) == 0 {
			continue
		}
		fmt.Fprintf(&b, "VIOLATIONS in %s:\n", m.Module)
		for _, v := range m.Violations {
			fmt.Fprintf(&b, "  %s\n", v)
		}
	}

	if s.Total > 0 {
		fmt.Fprintf(&b, "\nFAILURE: Found %d platform abstraction violations.\n", s.Total)
	} else {
		b.WriteString("\nSUCCESS: No platform leaks detected.\n")
	}
	if s.Strict && s.Errors > 0 {
		fmt.Fprintf(&b, "ERROR: %d paths could not be read.\n", s.Errors)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type jsonModule struct {
	Module     string            `json:"module"`
	Root       string            `json:"root"`
	Missing    bool              `json:"missing"`
	Files      int               `json:"files"`
	Violations []model.Violation `json:"violations"`
	Errors     []string          `json:"errors"`
}

type jsonReport struct {
	Modules []jsonModule `json:"modules"`
	Total   int          `json:"total"`
	Status  string       `json:"status"`
}

func writeJSON(w io.Writer, s Summary) error {
	out := jsonReport{Modules: []jsonModule{}, Total: s.Total, Status: status(s)}
	for _, m := range s.Modules {
		jm := jsonModule{
			Module:     m.Module,
			Root:       m.Root,
			Missing:    m.Missing,
			Files:      m.Files,
			Violations: m.Violations,
			Errors:     []string{},
		}
		if jm.Violations == nil {
			jm.Violations = []model.Violation{}
		}
		for _, e := range m.Errors {
			jm.Errors = append(jm.Errors, e.Error())
		}
		out.Modules = append(out.Modules, jm)
	}
	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("gerar JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(encoded))
	return err
}

func writeMarkdown(w io.Writer, s Summary) error {
	var b strings.Builder
	b.WriteString("## Platform leak check\n\n")
	for _, m := range s.Modules {
		switch {
		case m.Missing:
			fmt.Fprintf(&b, "### %s (missing: `%s`)\n\n", m.Module, m.Root)
		case len(m.Violations) == 0:
			fmt.Fprintf(&b, "### %s (clean)\n\n", m.Module)
		default:
			fmt.Fprintf(&b, "### %s (%d violation(s))\n", m.Module, len(m.Violations))
			for _, v := range m.Violations {
				fmt.Fprintf(&b, "- `%s:%d` `%s`\n", v.Path, v.Line, v.Text)
			}
			b.WriteString("\n")
		}
	}
	if s.Total > 0 {
		fmt.Fprintf(&b, "**FAILURE:** %d platform abstraction violations.\n", s.Total)
	} else {
		b.WriteString("**SUCCESS:** no platform leaks detected.\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func status(s Summary) string {
	switch s.ExitCode() {
	case ExitOK:
		return "success"
	case ExitViolations:
		return "failure"
	default:
		return "error"
	}
}
