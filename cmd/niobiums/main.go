package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"niobiums/internal/cfg"
	"niobiums/internal/metrics"
	"niobiums/internal/outdir"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once the root command has run.
type app struct {
	settings cfg.Settings
	metrics  *metrics.Metrics

	in  io.Reader
	out io.Writer

	// flag values
	logLevel    string
	metricsFile string
	assumeYes   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd, a := newRootCmd(os.Stdin, os.Stdout)
	err := rootCmd.ExecuteContext(ctx)
	// Failed runs still leave their error counters behind.
	if ferr := a.flushMetrics(); ferr != nil {
		log.Error().Err(ferr).Msg("Failed to write metrics")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("niobiums failed")
	}
}

func newRootCmd(in io.Reader, out io.Writer) (*cobra.Command, *app) {
	a := &app{in: in, out: out}

	rootCmd := &cobra.Command{
		Use:   "niobiums",
		Short: "Prepare spectral training splits and score classifier output",
		Long: `niobiums turns a labeled spectral dataset into learn/test partitions for
an external classifier, then scores the classifier's output per species
and per chemical family.

Settings come from a .env file, the YAML file named by CONFIG_FILE, or
environment variables. Flags override them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile when done")
	rootCmd.PersistentFlags().BoolVarP(&a.assumeYes, "yes", "y", false, "Overwrite existing output without asking")

	rootCmd.AddCommand(a.catalogCmd())
	rootCmd.AddCommand(a.importCmd())
	rootCmd.AddCommand(a.splitCmd())
	rootCmd.AddCommand(a.scoreCmd())
	return rootCmd, a
}

// setup loads settings, applies the persistent flags and sets up logging.
func (a *app) setup(cmd *cobra.Command) error {
	settings, err := cfg.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		settings.LogLevel = a.logLevel
	}
	if cmd.Flags().Changed("metrics-file") {
		settings.MetricsFile = a.metricsFile
	}
	if a.assumeYes {
		settings.AssumeYes = true
	}
	a.settings = settings

	level, err := zerolog.ParseLevel(strings.ToLower(settings.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	a.metrics = metrics.New()
	return nil
}

func (a *app) flushMetrics() error {
	if a.metrics == nil || a.settings.MetricsFile == "" {
		return nil
	}
	if err := a.metrics.WriteTextfile(a.settings.MetricsFile); err != nil {
		return err
	}
	log.Debug().Str("file", a.settings.MetricsFile).Msg("Metrics written")
	return nil
}

// confirmer asks on the terminal before output is replaced, unless the
// user already agreed with --yes.
func (a *app) confirmer() outdir.Confirmer {
	if a.settings.AssumeYes {
		return outdir.Always
	}
	return promptConfirmer(a.in, a.out)
}

func promptConfirmer(in io.Reader, out io.Writer) outdir.Confirmer {
	reader := bufio.NewReader(in)
	return outdir.ConfirmFunc(func(path string) bool {
		fmt.Fprintf(out, "%s already has files. Overwrite? [y/N] ", path)
		answer, err := reader.ReadString('\n')
		if err != nil && answer == "" {
			return false
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	})
}
