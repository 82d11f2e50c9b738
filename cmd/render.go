package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	internalconfig "github.com/JakeFAU/pdfchunker/internal/config"
	"github.com/JakeFAU/pdfchunker/internal/logging"
	"github.com/JakeFAU/pdfchunker/internal/telemetry"
)

// flagKeys maps render flags onto configuration keys.
var flagKeys = map[string]string{
	"out":          "output.path",
	"chunk":        "render.chunk_size",
	"concurrency":  "render.concurrency",
	"timeout":      "render.timeout",
	"headless":     "browser.headless",
	"print-media":  "browser.print_media",
	"chrome":       "browser.exec_path",
	"health-path":  "health.path",
	"wait-until":   "browser.wait_until",
	"verbose":      "logging.verbose",
	"metrics-addr": "metrics.addr",
}

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <url>",
		Short: "Render a page to a single merged PDF",
		Example: `  pdfchunker render http://localhost:8080/ -o book.pdf -k 20 -c 4
  pdfchunker render https://docs.example.com/print -o gs://reports/docs.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: runRender,
	}

	f := cmd.Flags()
	f.StringP("out", "o", internalconfig.DefaultOutputPath(), "output path or gs://bucket/object")
	f.IntP("chunk", "k", 10, "pages per chunk")
	f.IntP("concurrency", "c", 3, "parallel browser tabs")
	f.DurationP("timeout", "t", 0, "bound for each chunk render (default from config, 10s)")
	f.Bool("headless", true, "run Chrome headless")
	f.Bool("print-media", true, "emulate print media and disable animations")
	f.String("chrome", "", "Chrome executable (default $CHROME_PATH or $PUPPETEER_EXECUTABLE_PATH)")
	f.String("health-path", "/", "path probed before printing")
	f.Bool("no-health", false, "skip the readiness wait")
	f.String("wait-until", "load", "navigation ends at load, domcontentloaded, networkidle0 or networkidle2")
	f.BoolP("verbose", "v", true, "log progress (--verbose=false for warnings only)")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address while rendering")
	return cmd
}

func bindRenderFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		fl := flags.Lookup(name)
		if fl == nil || !fl.Changed {
			continue
		}
		if err := v.BindPFlag(key, fl); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	if noHealth, _ := flags.GetBool("no-health"); noHealth {
		v.Set("health.enabled", false)
	}
	return nil
}

func runRender(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	if err := bindRenderFlags(v, cmd.Flags()); err != nil {
		return err
	}
	v.Set("target", args[0])

	cfg, err := internalconfig.FromViper(v)
	if err != nil {
		return err
	}

	logger, restore, err := logging.InitLogger(cfg.Logging.Development, cfg.Logging.Verbose)
	if err != nil {
		return err
	}
	defer restore()

	tp, err := telemetry.InitTracerProvider(cmd.Context(), version)
	if err != nil {
		return err
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("shutdown tracer provider", zap.Error(err))
		}
	}()

	runner, err := newRunner(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer runner.Close()

	logger.Info("render starting",
		zap.String("target", cfg.Target),
		zap.Int("chunk_size", cfg.Render.ChunkSize),
		zap.Int("concurrency", cfg.Render.Concurrency),
		zap.String("output", cfg.Output.Path),
	)
	report, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}
	for _, line := range report.Lines() {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
