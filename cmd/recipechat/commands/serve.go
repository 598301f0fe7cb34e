package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/recipechat/internal/config"
	"github.com/opencode-ai/recipechat/internal/logging"
	"github.com/opencode-ai/recipechat/internal/server"
	"github.com/opencode-ai/recipechat/pkg/types"
)

var (
	servePort  int
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recipechat HTTP server",
	Long: `Start recipechat as a server that exposes chat views over an HTTP API,
with answers streamed as Server-Sent Events on /event.

Configuration files are watched and reloaded into every open chat view.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "Reload configuration files when they change")
}

func runServe(cmd *cobra.Command, args []string) error {
	dir, err := GetWorkDir(workDir)
	if err != nil {
		return err
	}
	log := logging.Component("serve")
	log.Info().Str("version", Version).Str("directory", dir).Msg("starting recipechat server")
	if path := logging.GetLogFilePath(); path != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Logging to %s\n", path)
	}

	ctx := context.Background()
	a, err := newApp(ctx, dir)
	if err != nil {
		return err
	}
	defer a.Close()
	a.authenticate(ctx)

	serverConfig := server.DefaultConfig()
	serverConfig.Port = servePort

	srv := server.New(serverConfig, server.Options{
		AppConfig: a.config(),
		Bus:       a.bus,
		History:   a.history,
		Recipes:   a.recipes,
		Plugins:   a.plugins,
		NewView:   a.newOrchestrator,
	})

	if serveWatch {
		watcher, err := config.Watch(dir, func(cfg *types.Config) {
			a.setConfig(cfg)
			srv.UpdateConfig(cfg, dir)
		})
		if err != nil {
			log.Warn().Err(err).Msg("configuration watching disabled")
		} else {
			defer watcher.Stop()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", servePort).Msg("server listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	log.Info().Msg("server stopped")
	return nil
}
