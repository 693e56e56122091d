package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/portscope/internal/api/handlers"
	"github.com/anstrom/portscope/internal/config"
	"github.com/anstrom/portscope/internal/logging"
	"github.com/anstrom/portscope/internal/ports"
	"github.com/anstrom/portscope/internal/probe"
	"github.com/anstrom/portscope/internal/scanning"
)

// scanOptions holds the scan command flags.
type scanOptions struct {
	ports        string
	protocol     string
	scanType     string
	timeout      float64
	threads      int
	aggressive   bool
	verboseLevel string
	scanID       string
	server       string
	jsonOutput   bool
	showClosed   bool
	showLogs     bool
}

var scanOpts scanOptions

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Scan a host for open ports and services",
	Long: `Scan a single host for open TCP or UDP ports.

The scan runs in this process unless --server points at a running
portscope API server. Ports accept lists and ranges such as
"22,80,8000-8010"; the Quick and Full scan types supply their own
ranges. Press Ctrl-C to cancel: probes already running finish and the
partial report is printed.`,
	Example: `  portscope scan localhost
  portscope scan scanme.nmap.org --ports 22,80,443
  portscope scan 192.168.1.10 --type Full --threads 200
  portscope scan 192.168.1.10 --protocol UDP --ports 53,123,161
  portscope scan example.com --server localhost:5000 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	flags := scanCmd.Flags()
	flags.StringVarP(&scanOpts.ports, "ports", "p", "", "ports to scan, e.g. 22,80,8000-8010")
	flags.StringVar(&scanOpts.protocol, "protocol", probe.ProtocolTCP, "protocol: TCP or UDP")
	flags.StringVarP(&scanOpts.scanType, "type", "t", string(ports.ScanQuick),
		"scan type: "+strings.Join(scanTypeNames(), ", "))
	flags.Float64Var(&scanOpts.timeout, "timeout", 0, "per-probe timeout in seconds (default from config)")
	flags.IntVar(&scanOpts.threads, "threads", 0, "concurrent probes (default from config)")
	flags.BoolVar(&scanOpts.aggressive, "aggressive", false, "mark the scan as aggressive")
	flags.StringVar(&scanOpts.verboseLevel, "verbose-level", scanning.DefaultVerboseLevel, "verbosity label recorded in the report")
	flags.StringVar(&scanOpts.scanID, "scan-id", "", "scan ID (generated when empty)")
	flags.StringVar(&scanOpts.server, "server", "", "run the scan on a portscope server at this address")
	flags.BoolVar(&scanOpts.jsonOutput, "json", false, "print the report as JSON")
	flags.BoolVar(&scanOpts.showClosed, "show-closed", false, "include closed and filtered ports in the table")
	flags.BoolVar(&scanOpts.showLogs, "logs", false, "print the scan log after the table")
	flags.String("dns-server", "", "DNS server used to resolve the target")

	bindFlag("scanning.dns_server", scanCmd, "dns-server")
}

func scanTypeNames() []string {
	names := make([]string, 0, len(ports.ScanTypes))
	for _, t := range ports.ScanTypes {
		names = append(names, string(t))
	}
	return names
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	req, err := buildScanRequest(cfg, args[0], scanOpts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var report *scanning.Report
	if scanOpts.server != "" {
		report, err = runRemoteScan(ctx, scanOpts.server, req)
	} else {
		report, err = runLocalScan(ctx, cfg, req, logging.Default())
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if scanOpts.jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}
	renderReport(out, report, scanOpts.showClosed, scanOpts.showLogs)
	return nil
}

// buildScanRequest converts flags into an orchestrator request, filling
// defaults from cfg.
func buildScanRequest(cfg *config.Config, target string, opts scanOptions) (scanning.Request, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return scanning.Request{}, fmt.Errorf("target is required")
	}

	scanType, err := ports.ParseScanType(opts.scanType)
	if err != nil {
		return scanning.Request{}, err
	}

	timeout := cfg.Scanning.DefaultTimeout
	if opts.timeout < 0 {
		return scanning.Request{}, fmt.Errorf("timeout must not be negative")
	}
	if opts.timeout > 0 {
		timeout = time.Duration(opts.timeout * float64(time.Second))
	}

	threads := cfg.Scanning.DefaultThreads
	if opts.threads < 0 {
		return scanning.Request{}, fmt.Errorf("threads must not be negative")
	}
	if opts.threads > 0 {
		threads = opts.threads
	}
	if threads > cfg.Scanning.MaxThreads {
		return scanning.Request{}, fmt.Errorf("threads must be at most %d", cfg.Scanning.MaxThreads)
	}

	scanID := strings.TrimSpace(opts.scanID)
	if scanID == "" {
		scanID = uuid.NewString()
	}

	return scanning.Request{
		ScanID:         scanID,
		Target:         target,
		PortRange:      opts.ports,
		Protocol:       opts.protocol,
		Timeout:        timeout,
		Threads:        threads,
		ScanType:       scanType,
		AggressiveMode: opts.aggressive,
		VerboseLevel:   opts.verboseLevel,
	}, nil
}

// runLocalScan runs req in this process. Cancelling ctx cancels the scan
// through the registry and the partial report is still returned.
func runLocalScan(ctx context.Context, cfg *config.Config, req scanning.Request, logger *logging.Logger) (*scanning.Report, error) {
	eng, err := buildEngine(ctx, cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = eng.close() }()

	// The scan itself runs on a context that survives Ctrl-C so that it
	// can return the outcomes gathered so far.
	scanCtx := context.WithoutCancel(ctx)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nCancelling scan, waiting for running probes...")
			if err := eng.orchestrator.Cancel(scanCtx, req.ScanID); err != nil {
				logger.Warn("Failed to cancel scan", "scan_id", req.ScanID, "error", err)
			}
		case <-done:
		}
	}()

	return eng.orchestrator.Scan(scanCtx, req)
}

// runRemoteScan submits req to a portscope server. On Ctrl-C the server is
// asked to cancel the scan and the partial report is awaited.
func runRemoteScan(ctx context.Context, server string, req scanning.Request) (*scanning.Report, error) {
	client := NewAPIClient(server, 0)

	timeout := req.Timeout.Seconds()
	threads := req.Threads
	body := handlers.ScanRequest{
		Target:         req.Target,
		PortRange:      req.PortRange,
		Protocol:       req.Protocol,
		Timeout:        &timeout,
		Threads:        &threads,
		ScanType:       string(req.ScanType),
		AggressiveMode: req.AggressiveMode,
		VerboseLevel:   req.VerboseLevel,
		ScanID:         req.ScanID,
	}

	scanCtx := context.WithoutCancel(ctx)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nCancelling scan on server...")
			if err := client.CancelScan(scanCtx, req.ScanID); err != nil {
				handleAPIError(err, "cancel scan")
			}
		case <-done:
		}
	}()

	report, err := client.StartScan(scanCtx, body)
	if err != nil {
		handleAPIError(err, "scan")
		return nil, err
	}
	return report, nil
}

// renderReport prints the results table, optionally the scan log, and the
// summary.
func renderReport(w io.Writer, report *scanning.Report, showClosed, showLogs bool) {
	summary := report.Summary

	rows := report.Results
	if !showClosed {
		rows = report.Open()
	}

	if len(rows) == 0 {
		fmt.Fprintln(w, "No open ports found.")
	} else {
		table := tablewriter.NewWriter(w)
		table.Header("Port", "Protocol", "Status", "Service", "Latency", "Banner")
		for i := range rows {
			o := &rows[i]
			latency := "-"
			if o.Latency != nil {
				latency = probe.FormatLatency(*o.Latency) + " ms"
			}
			_ = table.Append([]string{
				fmt.Sprintf("%d", o.Port),
				o.Protocol,
				string(o.Status),
				o.Service,
				latency,
				truncate(o.Banner, 60),
			})
		}
		_ = table.Render()
	}

	if showLogs {
		fmt.Fprintln(w, "\nScan log:")
		for _, line := range report.Logs {
			fmt.Fprintf(w, "  %s [%s] %s\n", line.Timestamp, line.Level, line.Message)
		}
	}

	fmt.Fprintf(w, "\nScan %s of %s finished in %.2fs\n", summary.ScanID, summary.Target, summary.Duration)
	fmt.Fprintf(w, "Open ports: %d, ports completed: %d of %d\n",
		summary.OpenPorts, summary.PortsCompleted, summary.PortsScanned)
	if summary.Cancelled {
		fmt.Fprintf(w, "Scan was cancelled; %d ports were not probed.\n", report.Skipped())
	}
}

// truncate shortens s to at most n runes on a single line.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
