package command

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/warpmesh/internal/client/config"
	"github.com/BioHazard786/warpmesh/internal/client/ui"
	"github.com/BioHazard786/warpmesh/internal/logging"
	"github.com/BioHazard786/warpmesh/internal/version"
)

var (
	logger = logging.Nop()
	opts   config.Options
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warpmesh",
	Short: "Meet peers in a room and chat over direct WebRTC connections",
	Long: `WarpMesh joins rooms on a signaling relay and connects you directly to every
other peer in the room. The relay only introduces peers; chat messages travel
over WebRTC data channels.`,
	Version: version.Version,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&opts.ServerURL, "server", "s", "", "relay websocket URL (ws:// or wss://)")
	f.StringVar(&opts.STUNServer, "stun", "", "STUN server URL")
	f.StringVar(&opts.TURNServer, "turn", "", "TURN server host")
	f.StringVar(&opts.TURNUser, "turn-user", "", "TURN username")
	f.StringVar(&opts.TURNPass, "turn-pass", "", "TURN password")
	f.BoolVar(&opts.ForceRelay, "relay", false, "only connect through the TURN server")
	f.StringVarP(&opts.Name, "name", "n", "", "name shown to other peers")

	rootCmd.AddCommand(roomsCmd, createCmd, joinCmd)
}

// Execute runs the CLI with log as the diagnostic logger. It is called once
// by main.
func Execute(log *logging.Logger) {
	if log != nil {
		logger = log
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
