package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/gridcalc"
	"github.com/vogtb/go-spreadsheet/packages/gridcalc/internal/server"
)

var (
	serveAddr      string
	serveStaticDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tables over HTTP",
	Long: `Serve tables over HTTP until interrupted.

Routes:
  GET    /api/test-engine
  POST   /api/tables
  DELETE /api/tables/{handle}
  GET    /api/tables/{handle}/cells
  GET    /api/tables/{handle}/cells/{addr}
  PUT    /api/tables/{handle}/cells/{addr}
  POST   /api/tables/{handle}/eval
  GET    /api/tables/{handle}/watch   (websocket)

With --static-dir, every other path is served from that directory and
falls back to its index.html.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default :3000, env: GRIDCALC_SERVER_ADDR)")
	serveCmd.Flags().StringVar(&serveStaticDir, "static-dir", "", "directory with a built frontend (env: GRIDCALC_SERVER_STATIC_DIR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(cmd.ErrOrStderr())

	registry := gridcalc.NewRegistry(gridcalc.WithTableFactory(cfg.TableFactory(logger)))
	srv := server.New(registry,
		server.WithLogger(logger),
		server.WithStaticDir(cfg.Server.StaticDir))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting gridcalc", "version", Version, "store", cfg.Engine.Store)
	return srv.Run(ctx, cfg.Server)
}
