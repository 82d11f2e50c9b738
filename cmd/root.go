// Package cmd defines the pdfchunker command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/pdfchunker/internal/app"
	internalconfig "github.com/JakeFAU/pdfchunker/internal/config"
	"github.com/JakeFAU/pdfchunker/internal/pagination"
	"github.com/JakeFAU/pdfchunker/pkg/config"
)

// Process exit statuses.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitEmpty   = 2
)

// Runner is the part of app.App the commands use. Tests swap newRunner for a fake.
type Runner interface {
	Run(ctx context.Context) (app.Report, error)
	Close()
}

// version is set at build time with -ldflags "-X github.com/JakeFAU/pdfchunker/cmd.version=...".
var version = "dev"

var newRunner = func(ctx context.Context, cfg internalconfig.Config, logger *zap.Logger) (Runner, error) {
	return app.New(ctx, cfg, logger)
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:     "pdfchunker",
		Version: version,
		Short:   "Print a web page to one PDF by rendering page ranges in parallel.",
		Long: `pdfchunker loads a page in headless Chrome and prints it in fixed-size page
ranges across several tabs at once. The end of the document is discovered while
printing, and the chunks are merged into a single PDF.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			used, err := config.InitConfig(cfgFile)
			if err != nil {
				return err
			}
			if used != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "using config file %s\n", used)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/pdfchunker, $HOME/.pdfchunker)")
	cmd.AddCommand(newRenderCmd())
	return cmd
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, pagination.ErrEmptyRun):
		return ExitEmpty
	default:
		return ExitFailure
	}
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, pagination.ErrEmptyRun) {
			msg += "; check the URL and the page's print styles"
		}
		fmt.Fprintf(stderr, "pdfchunker: %s\n", msg)
	}
	return ExitCode(err)
}

// Execute runs the CLI and exits the process.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
