package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tillerhq/tiller/internal/certify"
	"github.com/tillerhq/tiller/internal/config"
	"github.com/tillerhq/tiller/internal/mcp"
	"github.com/tillerhq/tiller/internal/reload"
)

var (
	serveTrail     string
	serveApprovals string
	serveWatch     bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveTrail, "trail", "", "Decision trail JSONL path (empty disables the trail)")
	serveCmd.Flags().StringVar(&serveApprovals, "approvals", "", "Approval store dir (default ~/.tiller/pending)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "Hot-reload the config when it changes (certified swaps only)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the governance gateway over MCP on stdio",
	Long: "Starts an MCP server exposing the governance tools. With --watch,\n" +
		"config changes are certified against the active baseline and applied\n" +
		"only when no certified behavior regresses.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	srv, err := mcp.New(mcp.Config{
		ConfigPath:  configPath,
		TrailPath:   serveTrail,
		ApprovalDir: serveApprovals,
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveWatch {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if _, err := os.Stat(path); err == nil {
			suite, err := certify.LoadSuite("core")
			if err != nil {
				return err
			}
			gw := srv.Gateway()
			base := certify.NewBaseline(certify.Run(gw.Config(), gw.PolicyHash(), suite))

			r, err := reload.New(gw, path, suite, base)
			if err != nil {
				return fmt.Errorf("config watcher: %w", err)
			}
			go r.Run(ctx)
		}
	}

	return srv.Run(ctx)
}
