package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roboco-io/chaptermd/internal/api"
	"github.com/roboco-io/chaptermd/internal/service"
)

var (
	serveAddr        string
	serveMaxUploadMB int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve conversions over HTTP",
	Long: `Start an HTTP server that converts uploaded documents.

Endpoints:
  GET  /health          liveness check
  GET  /api/providers   LLM providers and whether they are ready
  POST /api/inspect     chapter plan of the uploaded "file"
  POST /api/convert     convert the uploaded "file"; returns manifest.json,
                        or a zip of the output with archive=zip

Form fields split_level, dry_run, llm and locale override the config for
one request.

Examples:
  chaptermd serve
  chaptermd serve --addr 127.0.0.1:9000
  curl -F file=@book.docx -F archive=zip localhost:8080/api/convert -o book.zip`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().IntVar(&serveMaxUploadMB, "max-upload-mb", 0, "largest accepted upload in MB")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = serveAddr
	}
	if cmd.Flags().Changed("max-upload-mb") {
		cfg.Server.MaxUploadMB = serveMaxUploadMB
	}

	log := newLogger(cmd.ErrOrStderr())
	svc, err := service.New(cfg, log)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewServer(svc, log),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting chaptermd", "addr", cfg.Server.Addr, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
