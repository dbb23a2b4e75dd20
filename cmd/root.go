package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Sena-ops/leakguard/internal/logging"
	"github.com/Sena-ops/leakguard/internal/report"
)

var projectRoot string
var configPath string
var outputFormat string
var jobs int
var strictMode bool
var debugMode bool
var sarifFile string
var moduleNames []string

var rootCmd = &cobra.Command{
	Use:   "leakguard",
	Short: "leakguard - Verifica includes de plataforma nos módulos portáveis",
	Long: "Procura includes de sistema (windows.h, ALSA, JACK, SDL2, X11, Cocoa, RtAudio) " +
		"em NomadCore e nos headers públicos do NomadAudio. Sai com código 1 se achar algum.",
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE:              runCheckCmd,
}

// ExitError carrega o código de saída sem mensagem extra; o relatório já
// foi impresso.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute roda o comando e devolve o código de saída do processo.
func Execute() int {
	// Carrega .env se existir
	_ = godotenv.Load()
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		fmt.Fprintln(os.Stderr, "Erro:", err)
		return report.ExitError
	}
	return report.ExitOK
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&projectRoot, "root", "", "Raiz do projeto (padrão: $LEAKGUARD_ROOT ou diretório atual)")
	pf.StringVarP(&configPath, "config", "c", "", "Arquivo YAML com regras (padrão: $LEAKGUARD_CONFIG ou regras embutidas)")
	pf.StringVarP(&outputFormat, "format", "o", report.FormatText, "Formato da saída ("+strings.Join(report.Formats, ", ")+")")
	pf.IntVarP(&jobs, "jobs", "j", 0, "Arquivos varridos em paralelo (0 = número de CPUs)")
	pf.BoolVar(&strictMode, "strict", false, "Falha com código 2 se algum arquivo não puder ser lido")
	pf.StringVar(&sarifFile, "sarif-file", "", "Também grava o relatório SARIF neste caminho")
	pf.StringSliceVarP(&moduleNames, "module", "m", nil, "Verifica só os módulos indicados")
	pf.BoolVar(&debugMode, "debug", false, "Habilita logs em nível debug")
}

func setup(cmd *cobra.Command, args []string) error {
	if err := logging.InitLogger(debugMode); err != nil {
		return fmt.Errorf("iniciar logger: %w", err)
	}
	if !report.ValidFormat(strings.ToLower(outputFormat)) {
		return fmt.Errorf("formato '%s' não suportado (use %s)", outputFormat, strings.Join(report.Formats, ", "))
	}
	return nil
}

type options struct {
	Root      string
	Config    string
	Format    string
	Jobs      int
	Strict    bool
	SarifFile string
	Modules   []string
}

// currentOptions junta flags e variáveis de ambiente. Flag tem prioridade.
func currentOptions() (options, error) {
	o := options{
		Root:      firstNonEmpty(projectRoot, os.Getenv("LEAKGUARD_ROOT")),
		Config:    firstNonEmpty(configPath, os.Getenv("LEAKGUARD_CONFIG")),
		Format:    strings.ToLower(outputFormat),
		Jobs:      jobs,
		Strict:    strictMode,
		SarifFile: sarifFile,
		Modules:   moduleNames,
	}
	if o.Root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return o, fmt.Errorf("obter diretório atual: %w", err)
		}
		o.Root = cwd
	}
	abs, err := filepath.Abs(o.Root)
	if err != nil {
		return o, fmt.Errorf("resolver raiz do projeto: %w", err)
	}
	o.Root = abs
	return o, nil
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}
