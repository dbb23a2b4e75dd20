package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sena-ops/leakguard/internal/config"
	"github.com/Sena-ops/leakguard/internal/logging"
	"github.com/Sena-ops/leakguard/internal/report"
	"github.com/Sena-ops/leakguard/internal/sarif"
	"github.com/Sena-ops/leakguard/internal/scanner"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verifica os módulos (mesmo que rodar sem subcomando)",
	Args:  cobra.NoArgs,
	RunE:  runCheckCmd,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheckCmd(cmd *cobra.Command, args []string) error {
	o, err := currentOptions()
	if err != nil {
		return err
	}
	code, err := runCheck(cmd.Context(), cmd.OutOrStdout(), o)
	if err != nil {
		return err
	}
	if code != report.ExitOK {
		return &ExitError{Code: code}
	}
	return nil
}

// runCheck imprime o relatório em out e devolve o código de saída. Erro só
// para problemas de configuração.
func runCheck(ctx context.Context, out io.Writer, o options) (int, error) {
	cfg, err := loadConfig(o)
	if err != nil {
		return report.ExitError, err
	}
	summary, err := check(ctx, cfg, o)
	if err != nil {
		return report.ExitError, err
	}
	if err := report.Write(out, o.Format, summary); err != nil {
		return report.ExitError, err
	}
	if o.SarifFile != "" {
		if err := sarif.Export(summary.Violations(), o.SarifFile, report.ToolName, report.ToolVersion); err != nil {
			return report.ExitError, err
		}
		logging.Logger.Infow("SARIF salvo", "arquivo", o.SarifFile)
	}
	return summary.ExitCode(), nil
}

func loadConfig(o options) (*config.Config, error) {
	cfg := config.Default()
	if o.Config != "" {
		loaded, err := config.Load(o.Config)
		if err != nil {
			return nil, err
		}
		logging.Logger.Debugw("config carregada", "arquivo", o.Config, "modulos", loaded.Registry.Names())
		cfg = loaded
	}
	reg, err := cfg.Registry.Filter(o.Modules)
	if err != nil {
		return nil, err
	}
	cfg.Registry = reg
	return cfg, nil
}

func newWalker(cfg *config.Config, o options) *scanner.Walker {
	w := scanner.NewWalker(logging.Logger)
	w.Extensions = cfg.Extensions
	w.Markers = cfg.Markers
	if o.Jobs > 0 {
		w.Jobs = o.Jobs
	}
	return w
}

func check(ctx context.Context, cfg *config.Config, o options) (report.Summary, error) {
	rules, err := cfg.Registry.Compile()
	if err != nil {
		return report.Summary{}, err
	}
	logging.Logger.Debugw("verificando", "raiz", o.Root, "modulos", cfg.Registry.Names())

	results, err := newWalker(cfg, o).Run(ctx, o.Root, rules)
	if err != nil {
		return report.Summary{}, fmt.Errorf("varredura interrompida: %w", err)
	}
	return report.NewSummary(results, o.Strict), nil
}
