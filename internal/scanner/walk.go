package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Sena-ops/leakguard/internal/model"
	"github.com/Sena-ops/leakguard/internal/parser"
)

// FileError é um arquivo ou diretório que não pôde ser lido. Não interrompe
// a varredura.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e FileError) Unwrap() error { return e.Err }

// ModuleResult é o resultado de um módulo.
type ModuleResult struct {
	Module     string
	Root       string // caminho efetivamente verificado
	Missing    bool
	Files      int
	Violations []model.Violation
	Errors     []FileError
}

type Walker struct {
	Extensions []string
	Markers    []string
	Jobs       int
	Logger     *zap.SugaredLogger
}

func NewWalker(logger *zap.SugaredLogger) *Walker {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Walker{
		Extensions: parser.DefaultExtensions,
		Markers:    DefaultMarkers,
		Jobs:       runtime.NumCPU(),
		Logger:     logger,
	}
}

// Run verifica cada regra em sequência, na ordem recebida.
func (w *Walker) Run(ctx context.Context, projectRoot string, rules []CompiledRule) ([]ModuleResult, error) {
	results := make([]ModuleResult, 0, len(rules))
	for _, rule := range rules {
		res, err := w.Walk(ctx, projectRoot, rule)
		if err != nil {
			return results, fmt.Errorf("módulo %s: %w", rule.Name, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// Walk lista os arquivos do módulo, ordena os caminhos e varre cada arquivo.
// A varredura roda em paralelo, mas o resultado segue a ordem dos caminhos.
func (w *Walker) Walk(ctx context.Context, projectRoot string, rule CompiledRule) (ModuleResult, error) {
	root := rule.Root
	if !filepath.IsAbs(root) {
		root = filepath.Join(projectRoot, root)
	}
	res := ModuleResult{Module: rule.Name, Root: root}

	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		w.Logger.Warnw("módulo ausente", "modulo", rule.Name, "raiz", root)
		res.Missing = true
		return res, nil
	}
	if err != nil {
		res.Errors = append(res.Errors, w.fail(root, err))
		return res, nil
	}
	if !info.IsDir() {
		res.Errors = append(res.Errors, w.fail(root, errors.New("não é um diretório")))
		return res, nil
	}

	files, walkErrs := w.collect(root, rule)
	res.Errors = append(res.Errors, walkErrs...)
	sort.Strings(files)
	res.Files = len(files)
	w.Logger.Debugw("arquivos encontrados", "modulo", rule.Name, "total", len(files))

	found := make([][]model.Violation, len(files))
	failed := make([]error, len(files))

	jobs := w.Jobs
	if jobs < 1 {
		jobs = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vs, err := ScanFile(path, rule.Regexps, w.Markers)
			if err != nil {
				failed[i] = err
				return nil
			}
			rel := relPath(projectRoot, path)
			for k := range vs {
				vs[k].Module = rule.Name
				vs[k].Path = rel
			}
			found[i] = vs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	for i, vs := range found {
		if failed[i] != nil {
			res.Errors = append(res.Errors, w.fail(files[i], failed[i]))
			continue
		}
		res.Violations = append(res.Violations, vs...)
	}
	return res, nil
}

// collect devolve os caminhos sob root. Se root for um link, a caminhada
// acontece no destino mas os caminhos devolvidos continuam sob root.
func (w *Walker) collect(root string, rule CompiledRule) ([]string, []FileError) {
	base := root
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		base = resolved
	}

	var files []string
	var errs []FileError
	_ = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, w.fail(path, err))
			return nil
		}
		rel, relErr := filepath.Rel(base, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path == base {
				return nil
			}
			if !rule.Recursive || rule.Excluded(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !parser.HasExtension(d.Name(), w.Extensions) || rule.Excluded(rel, false) {
			return nil
		}
		if !d.Type().IsRegular() {
			// link para diretório ou arquivo especial
			st, err := os.Stat(path)
			if err != nil {
				errs = append(errs, w.fail(path, err))
				return nil
			}
			if !st.Mode().IsRegular() {
				return nil
			}
		}
		files = append(files, filepath.Join(root, filepath.FromSlash(rel)))
		return nil
	})
	return files, errs
}

func (w *Walker) fail(path string, err error) FileError {
	w.Logger.Warnw("não foi possível ler", "caminho", path, "erro", err)
	return FileError{Path: path, Err: err}
}

func relPath(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
