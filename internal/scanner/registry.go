package scanner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultMarkers liberam uma linha mesmo quando ela casa com um padrão.
var DefaultMarkers = []string{"NOLINT", "// ALLOW_PLATFORM_INCLUDE"}

// includeSpace casa o mesmo espaço em branco que \s casa em regex Unicode
// (Python, PCRE com UCP): além de [\t\n\f\r ], também \v, U+001C..U+001F,
// U+0085 e os separadores Unicode (NBSP, U+2028...). O \s do RE2 é só ASCII.
const includeSpace = `[\s\v\x{1c}-\x{1f}\x{85}\p{Z}]+`

// bannedInclude monta o padrão de um #include <prefix...> proibido.
// prefix já vem escapado.
func bannedInclude(prefix string) string {
	return `#include` + includeSpace + `<` + prefix
}

// Rule descreve um módulo e os includes proibidos nele.
type Rule struct {
	Name      string   `yaml:"name"`
	Root      string   `yaml:"root"` // relativo à raiz do projeto
	Patterns  []string `yaml:"patterns"`
	Recursive bool     `yaml:"recursive"`
	Exclude   []string `yaml:"exclude,omitempty"` // globs relativos a Root, separador "/"
}

// Registry é a lista ordenada de regras; a ordem define a ordem do relatório.
type Registry []Rule

// DefaultRegistry devolve as regras embutidas: NomadCore inteiro e os headers
// públicos do NomadAudio.
func DefaultRegistry() Registry {
	return Registry{
		{
			Name: "NomadCore",
			Root: "NomadCore",
			Patterns: []string{
				bannedInclude(`windows\.h>`),
				bannedInclude(`alsa/`),
				bannedInclude(`jack/`),
				bannedInclude(`SDL2/`),
				bannedInclude(`X11/`),
				bannedInclude(`Cocoa/`),
			},
			Recursive: true,
		},
		{
			Name: "NomadAudio Headers",
			Root: "NomadAudio/include",
			Patterns: []string{
				bannedInclude(`windows\.h>`),
				bannedInclude(`alsa/`),
				bannedInclude(`jack/`),
				// RtAudio só pode aparecer nos wrappers NomadAudioLinux/Win/Mac
				bannedInclude(`RtAudio\.h>`),
			},
			Recursive: true,
		},
	}
}

func (r Registry) Lookup(name string) (Rule, bool) {
	for _, rule := range r {
		if rule.Name == name {
			return rule, true
		}
	}
	return Rule{}, false
}

func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for _, rule := range r {
		names = append(names, rule.Name)
	}
	return names
}

// Filter mantém só os módulos pedidos, na ordem do registro. Lista vazia
// devolve tudo.
func (r Registry) Filter(names []string) (Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	wanted := map[string]bool{}
	for _, n := range names {
		if _, ok := r.Lookup(n); !ok {
			return nil, fmt.Errorf("módulo '%s' não existe (disponíveis: %s)", n, strings.Join(r.Names(), ", "))
		}
		wanted[n] = true
	}
	var out Registry
	for _, rule := range r {
		if wanted[rule.Name] {
			out = append(out, rule)
		}
	}
	return out, nil
}

// CompiledRule é uma Rule com regex e globs já compilados.
type CompiledRule struct {
	Rule
	Regexps  []*regexp.Regexp
	excludes []glob.Glob
}

func (r Registry) Compile() ([]CompiledRule, error) {
	out := make([]CompiledRule, 0, len(r))
	for _, rule := range r {
		c, err := rule.Compile()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r Rule) Compile() (CompiledRule, error) {
	c := CompiledRule{Rule: r}
	for _, p := range r.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return CompiledRule{}, fmt.Errorf("regra %s: padrão inválido %q: %w", r.Name, p, err)
		}
		c.Regexps = append(c.Regexps, re)
	}
	for _, e := range r.Exclude {
		g, err := glob.Compile(e, '/')
		if err != nil {
			return CompiledRule{}, fmt.Errorf("regra %s: exclude inválido %q: %w", r.Name, e, err)
		}
		c.excludes = append(c.excludes, g)
	}
	return c, nil
}

// Excluded testa um caminho relativo à raiz do módulo (separador "/").
// Diretórios também são testados com "/" no final, assim "src/Linux/**"
// poda o próprio diretório src/Linux.
func (c CompiledRule) Excluded(rel string, isDir bool) bool {
	for _, g := range c.excludes {
		if g.Match(rel) {
			return true
		}
		if isDir && g.Match(rel+"/") {
			return true
		}
	}
	return false
}
