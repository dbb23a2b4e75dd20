package cmd

import (
	"context"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Sena-ops/leakguard/internal/logging"
	"github.com/Sena-ops/leakguard/internal/parser"
	"github.com/Sena-ops/leakguard/internal/report"
	"github.com/Sena-ops/leakguard/internal/scanner"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refaz o check sempre que um fonte dos módulos muda",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := currentOptions()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runWatch(ctx, cmd.OutOrStdout(), o, watchDebounce)
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "Espera após a última mudança antes de refazer o check")
	rootCmd.AddCommand(watchCmd)
}

// runWatch roda um check inicial e outro a cada rajada de mudanças, até ctx
// acabar. O código de saída de cada check só vai para o log.
func runWatch(ctx context.Context, out io.Writer, o options, debounce time.Duration) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	rules, err := cfg.Registry.Compile()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	modules := make([]moduleWatch, 0, len(rules))
	for _, rule := range rules {
		dir := rule.Root
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(o.Root, dir)
		}
		m := moduleWatch{rule: rule, dir: dir}
		if err := m.add(watcher); err != nil {
			logging.Logger.Warnw("módulo não será observado", "modulo", rule.Name, "erro", err)
		}
		modules = append(modules, m)
	}

	runOnce := func() {
		summary, err := check(ctx, cfg, o)
		if err != nil {
			logging.Logger.Errorw("erro no check", "erro", err)
			return
		}
		if err := report.Write(out, o.Format, summary); err != nil {
			logging.Logger.Errorw("erro ao escrever relatório", "erro", err)
		}
		logging.Logger.Infow("check concluído", "violacoes", summary.Total, "codigo", summary.ExitCode())
	}
	runOnce()

	fire := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					for _, m := range modules {
						if err := m.created(watcher, ev.Name); err != nil {
							logging.Logger.Warnw("diretório não será observado", "caminho", ev.Name, "erro", err)
						}
					}
				}
			}
			if !parser.HasExtension(filepath.Base(ev.Name), cfg.Extensions) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			runOnce()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Logger.Warnw("erro do watcher", "erro", err)
		}
	}
}

type moduleWatch struct {
	rule scanner.CompiledRule
	dir  string
}

// add observa a árvore do módulo respeitando Recursive e Exclude. Se a raiz
// ainda não existe, observa o ancestral mais próximo que existe para notar
// quando ela for criada.
func (m moduleWatch) add(w *fsnotify.Watcher) error {
	if st, err := os.Stat(m.dir); err != nil || !st.IsDir() {
		return w.Add(existingAncestor(m.dir))
	}
	return addWatchTree(w, m.dir, m.dir, m.rule)
}

// created trata um diretório novo: pode ser a raiz do módulo (ou um caminho
// até ela) ou um subdiretório dentro dela.
func (m moduleWatch) created(w *fsnotify.Watcher, dir string) error {
	if dir == m.dir || isWithin(dir, m.dir) {
		return m.add(w)
	}
	if !isWithin(m.dir, dir) || !m.rule.Recursive {
		return nil
	}
	rel, err := filepath.Rel(m.dir, dir)
	if err != nil {
		return err
	}
	if m.rule.Excluded(filepath.ToSlash(rel), true) {
		return nil
	}
	return addWatchTree(w, m.dir, dir, m.rule)
}

// addWatchTree observa start e, se a regra for recursiva, os subdiretórios
// não excluídos. Os globs são relativos a moduleDir.
func addWatchTree(w *fsnotify.Watcher, moduleDir, start string, rule scanner.CompiledRule) error {
	if !rule.Recursive {
		return w.Add(start)
	}
	return filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == start {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != moduleDir {
			rel, relErr := filepath.Rel(moduleDir, path)
			if relErr == nil && rule.Excluded(filepath.ToSlash(rel), true) {
				return filepath.SkipDir
			}
		}
		return w.Add(path)
	})
}

func existingAncestor(dir string) string {
	for {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// isWithin diz se path fica estritamente abaixo de dir.
func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel != ".." && !strings.HasPrefix(rel, "../")
}
