package scanner

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Sena-ops/leakguard/internal/model"
	"github.com/Sena-ops/leakguard/internal/parser"
)

// ScanFile procura os padrões em cada linha do arquivo. Arquivo binário
// devolve lista vazia sem erro. Uma linha que casa com dois padrões gera
// duas violações.
func ScanFile(path string, patterns []*regexp.Regexp, markers []string) ([]model.Violation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !parser.IsText(data) {
		return nil, nil
	}

	name := filepath.Base(path)
	var out []model.Violation
	for i, line := range parser.SplitLines(data) {
		for _, re := range patterns {
			if !re.MatchString(line) {
				continue
			}
			if suppressed(line, markers) {
				continue
			}
			out = append(out, model.Violation{
				File:    name,
				Path:    filepath.ToSlash(path),
				Line:    i + 1,
				Text:    strings.TrimSpace(line),
				Pattern: re.String(),
			})
		}
	}
	return out, nil
}

func suppressed(line string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(line, m) {
			return true
		}
	}
	return false
}
