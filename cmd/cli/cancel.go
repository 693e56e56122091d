package cli

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/portscope/internal/config"
)

const remoteCommandTimeout = 10 * time.Second

var remoteServer string

// cancelCmd represents the cancel command.
var cancelCmd = &cobra.Command{
	Use:   "cancel <scan-id>",
	Short: "Cancel a scan running on a portscope server",
	Long: `Ask a portscope server to cancel a running scan. The server always
acknowledges, including for scans that are unknown or already finished.`,
	Example: `  portscope cancel 5f0c6a4e-2b1d-4d38-9a0e-0b6f7c1e2d3a
  portscope cancel my-scan --server scanner.internal:5000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := remoteClient()
		if err != nil {
			return err
		}

		ctx, cancel := contextWithTimeout(cmd, remoteCommandTimeout)
		defer cancel()

		if err := client.CancelScan(ctx, args[0]); err != nil {
			handleAPIError(err, "cancel scan")
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Scan %s cancelled\n", args[0])
		return nil
	},
}

// activeCmd represents the active command.
var activeCmd = &cobra.Command{
	Use:     "active",
	Short:   "List scans running on a portscope server",
	Example: `  portscope active --server localhost:5000`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := remoteClient()
		if err != nil {
			return err
		}

		ctx, cancel := contextWithTimeout(cmd, remoteCommandTimeout)
		defer cancel()

		ids, err := client.ActiveScans(ctx)
		if err != nil {
			handleAPIError(err, "list active scans")
			return err
		}

		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No active scans")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(activeCmd)

	for _, cmd := range []*cobra.Command{cancelCmd, activeCmd} {
		cmd.Flags().StringVar(&remoteServer, "server", "", "portscope server address (default from config)")
	}
}

// remoteClient builds a client for --server or the configured API address.
func remoteClient() (*APIClient, error) {
	if remoteServer != "" {
		return NewAPIClient(remoteServer, remoteCommandTimeout), nil
	}
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return NewAPIClient(localAddress(cfg), remoteCommandTimeout), nil
}

// localAddress turns a listen address into one a client can dial.
func localAddress(cfg *config.Config) string {
	host := cfg.API.ListenAddr
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.API.Port))
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(commandContext(cmd), d)
}
