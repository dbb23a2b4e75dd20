package sarif

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Sena-ops/leakguard/internal/model"
)

// Schema é o RTM reconhecido por GitHub/VSCode.
const (
	Version = "2.1.0"
	Schema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
)

type Log struct {
	Version string `json:"version"`
	Schema  string `json:"$schema"`
	Runs    []Run  `json:"runs"`
}

type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

type Tool struct {
	Driver Driver `json:"driver"`
}

type Driver struct {
	Name    string           `json:"name"`
	Version string           `json:"version"`
	Rules   []RuleDescriptor `json:"rules,omitempty"`
}

type RuleDescriptor struct {
	ID               string  `json:"id"`
	ShortDescription Message `json:"shortDescription"`
}

type Result struct {
	RuleID    string     `json:"ruleId"`
	Message   Message    `json:"message"`
	Level     string     `json:"level"` // error, warning, note
	Locations []Location `json:"locations"`
}

type Message struct {
	Text string `json:"text"`
}

type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region"`
}

type ArtifactLocation struct {
	URI string `json:"uri"`
}

type Region struct {
	StartLine int `json:"startLine"`
}

// RuleID identifica o módulo no SARIF, ex: "platform-leak/NomadCore".
func RuleID(module string) string {
	return "platform-leak/" + strings.ReplaceAll(module, " ", "-")
}

// Build monta um log SARIF com uma regra por módulo presente nas violações.
func Build(vs []model.Violation, toolName, toolVersion string) Log {
	results := make([]Result, 0, len(vs))
	var rules []RuleDescriptor
	seen := map[string]bool{}
	for _, v := range vs {
		id := RuleID(v.Module)
		if !seen[id] {
			seen[id] = true
			rules = append(rules, RuleDescriptor{
				ID:               id,
				ShortDescription: Message{Text: fmt.Sprintf("Include de plataforma proibido em %s", v.Module)},
			})
		}
		fileURI := toURI(v.Path)
		if strings.TrimSpace(fileURI) == "" {
			fileURI = "UNKNOWN"
		}
		start := v.Line
		if start <= 0 {
			start = 1
		}
		results = append(results, Result{
			RuleID: id,
			Level:  "error",
			Message: Message{
				Text: fmt.Sprintf("%s (padrão %s)", strings.TrimSpace(v.Text), v.Pattern),
			},
			Locations: []Location{
				{
					PhysicalLocation: PhysicalLocation{
						ArtifactLocation: ArtifactLocation{
							URI: fileURI,
						},
						Region: Region{
							StartLine: start,
						},
					},
				},
			},
		})
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

	return Log{
		Version: Version,
		Schema:  Schema,
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:    toolName,
						Version: toolVersion,
						Rules:   rules,
					},
				},
				Results: results,
			},
		},
	}
}

func Write(w io.Writer, log Log) error {
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sarif: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Export grava o log em outPath, criando o diretório pai se preciso.
func Export(vs []model.Violation, outPath, toolName, toolVersion string) error {
	if dir := filepath.Dir(outPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("criar dir sarif: %w", err)
		}
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("escrever sarif: %w", err)
	}
	if err := Write(f, Build(vs, toolName, toolVersion)); err != nil {
		f.Close()
		return fmt.Errorf("escrever sarif: %w", err)
	}
	return f.Close()
}

func toURI(p string) string {
	p = strings.TrimSpace(p)
	p = filepath.ToSlash(p)
	for strings.HasPrefix(p, "../") {
		p = strings.TrimPrefix(p, "../")
	}
	return strings.TrimPrefix(p, "./")
}
