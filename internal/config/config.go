// Package config carrega o arquivo YAML opcional que substitui as regras
// embutidas.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Sena-ops/leakguard/internal/parser"
	"github.com/Sena-ops/leakguard/internal/scanner"
)

// File é o formato do arquivo de configuração. Campos vazios mantêm o padrão.
type File struct {
	Extensions []string       `yaml:"extensions,omitempty" validate:"omitempty,dive,startswith=."`
	Markers    []string       `yaml:"suppress_markers,omitempty" validate:"omitempty,dive,required"`
	Modules    []ModuleConfig `yaml:"modules,omitempty" validate:"omitempty,dive"`
}

type ModuleConfig struct {
	Name      string   `yaml:"name" validate:"required"`
	Root      string   `yaml:"root" validate:"required"`
	Patterns  []string `yaml:"patterns" validate:"required,min=1,dive,required"`
	Recursive *bool    `yaml:"recursive,omitempty"` // padrão true
	Exclude   []string `yaml:"exclude,omitempty" validate:"omitempty,dive,required"`
}

// Config é a configuração efetiva usada pelo check.
type Config struct {
	Registry   scanner.Registry
	Extensions []string
	Markers    []string
}

func Default() *Config {
	return &Config{
		Registry:   scanner.DefaultRegistry(),
		Extensions: append([]string(nil), parser.DefaultExtensions...),
		Markers:    append([]string(nil), scanner.DefaultMarkers...),
	}
}

// Load lê o YAML em path. Campos desconhecidos são rejeitados.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ler config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decodificar config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	cfg := Default()
	if len(f.Extensions) > 0 {
		cfg.Extensions = f.Extensions
	}
	if len(f.Markers) > 0 {
		cfg.Markers = f.Markers
	}
	if len(f.Modules) > 0 {
		cfg.Registry = make(scanner.Registry, 0, len(f.Modules))
		for _, m := range f.Modules {
			recursive := true
			if m.Recursive != nil {
				recursive = *m.Recursive
			}
			cfg.Registry = append(cfg.Registry, scanner.Rule{
				Name:      m.Name,
				Root:      m.Root,
				Patterns:  m.Patterns,
				Recursive: recursive,
				Exclude:   m.Exclude,
			})
		}
	}
	if _, err := cfg.Registry.Compile(); err != nil {
		return nil, fmt.Errorf("config inválida: %w", err)
	}
	return cfg, nil
}

func (f *File) Validate() error {
	if err := validator.New().Struct(f); err != nil {
		return fmt.Errorf("config inválida: %w", err)
	}
	seen := map[string]bool{}
	for _, m := range f.Modules {
		if seen[m.Name] {
			return fmt.Errorf("config inválida: módulo '%s' duplicado", m.Name)
		}
		seen[m.Name] = true
	}
	return nil
}

// File converte de volta para o formato do arquivo, usado pelo comando rules.
func (c *Config) File() File {
	f := File{Extensions: c.Extensions, Markers: c.Markers}
	for _, r := range c.Registry {
		recursive := r.Recursive
		f.Modules = append(f.Modules, ModuleConfig{
			Name:      r.Name,
			Root:      r.Root,
			Patterns:  r.Patterns,
			Recursive: &recursive,
			Exclude:   r.Exclude,
		})
	}
	return f
}

func (c *Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c.File()); err != nil {
		return nil, fmt.Errorf("codificar config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
