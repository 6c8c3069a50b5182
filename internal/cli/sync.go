package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/bankero/internal/config"
	"github.com/roach88/bankero/internal/discovery"
	"github.com/roach88/bankero/internal/folder"
	"github.com/roach88/bankero/internal/lansync"
)

const invalidSyncUsage = "Invalid sync command. Try: bankero sync discover; then: bankero sync @1 all"

// NewSyncCommand creates the sync command group. Besides its subcommands
// it accepts "sync @N all" to run a LAN session with a cached peer.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [@peer all]",
		Short: "Sync the ledger through a shared folder or the local network",
		Long: `Sync the current workspace with other devices.

Shared folder:
  bankero login --sync-dir ~/Dropbox
  bankero sync now

Local network:
  bankero sync expose            (on the device to sync with)
  bankero sync discover
  bankero sync @1 all`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncPeer(rootOpts, args, cmd)
		},
	}

	cmd.AddCommand(newSyncNowCommand(rootOpts))
	cmd.AddCommand(newSyncStatusCommand(rootOpts))
	cmd.AddCommand(newSyncDiscoverCommand(rootOpts))
	cmd.AddCommand(newSyncExposeCommand(rootOpts))
	return cmd
}

// folderTransport builds the folder transport for a, honouring --dir and
// BANKERO_SYNC_DIR.
func folderTransport(a *app, dir string) (*folder.Transport, error) {
	syncDir := dir
	if syncDir == "" {
		syncDir = a.cfg.EffectiveSyncDir(os.Getenv(config.EnvSyncDir))
	}
	return folder.New(folder.Config{
		SyncDir:   syncDir,
		Workspace: a.cfg.CurrentWorkspace,
		DeviceID:  a.cfg.DeviceID,
		Logger:    a.log,
	}, a.store)
}

func (a *app) recordSync() error {
	now := a.clock().Now().UTC()
	a.cfg.LastSyncAt = &now
	return a.saveConfig()
}

func newSyncNowCommand(rootOpts *RootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "now",
		Short: "Export to and import from the shared sync folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := folderTransport(a, dir)
			if err != nil {
				return err
			}
			stats, err := t.Sync(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.recordSync(); err != nil {
				return err
			}

			res := struct {
				SyncDir        string `json:"sync_dir"`
				ImportedEvents int    `json:"imported_events"`
				ImportedRates  int    `json:"imported_rates"`
			}{t.SyncDir(), stats.ImportedEvents, stats.ImportedRates}
			return a.formatter(cmd).Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "synced\t%s\t(imported events: %d, imported rates: %d)\n",
					res.SyncDir, res.ImportedEvents, res.ImportedRates)
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "shared folder (overrides the configured one)")
	return cmd
}

func newSyncStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show shared-folder sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := folderTransport(a, dir)
			if err != nil {
				return err
			}
			st, err := t.Status(cmd.Context())
			if err != nil {
				return err
			}

			lastSync := "<never>"
			if a.cfg.LastSyncAt != nil {
				lastSync = a.cfg.LastSyncAt.UTC().Format(time.RFC3339)
			}
			res := struct {
				folder.Status
				LastSyncAt string `json:"last_sync_at"`
			}{st, lastSync}
			return a.formatter(cmd).Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "workspace\t%s\n", st.Workspace)
				fmt.Fprintf(w, "device_id\t%s\n", st.DeviceID)
				fmt.Fprintf(w, "sync_dir\t%s\n", st.SyncDir)
				fmt.Fprintf(w, "sync_ws_root\t%s\n", st.WorkspaceRoot)
				fmt.Fprintf(w, "sync_device_root\t%s\n", st.DeviceRoot)
				fmt.Fprintf(w, "local_events\t%d\n", st.LocalEvents)
				fmt.Fprintf(w, "local_rates\t%d\n", st.LocalRates)
				fmt.Fprintf(w, "last_sync_at\t%s\n", lastSync)
				fmt.Fprintf(w, "sync_ws_root_exists\t%t\n", st.WorkspaceRootExists)
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "shared folder (overrides the configured one)")
	return cmd
}

func newSyncDiscoverCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		target    string
		timeoutMS int
	)
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find exposed devices on the local network",
		Long: `Broadcast a discovery request for the current workspace and list the
devices that answer. Results are cached so that "bankero sync @N all" can
refer to them by handle.

Example:
  bankero sync discover
  bankero sync discover --target 192.168.1.20:45667 --timeout-ms 800`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(rootOpts)
			if err != nil {
				return err
			}

			peers, err := discovery.Discover(cmd.Context(), discovery.Options{
				Workspace: a.cfg.CurrentWorkspace,
				DeviceID:  a.cfg.DeviceID,
				Target:    target,
				Timeout:   time.Duration(timeoutMS) * time.Millisecond,
				Clock:     a.clock(),
				Logger:    a.log,
			})
			if err != nil {
				return err
			}
			if err := discovery.SaveCache(a.paths.PeersFile(), peers); err != nil {
				return err
			}

			return a.formatter(cmd).Success(peers, func(w io.Writer) {
				if len(peers) == 0 {
					fmt.Fprintln(w, "(no peers found)")
					return
				}
				for i, p := range peers {
					fmt.Fprintln(w, discovery.FormatPeer(i+1, p))
				}
			})
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "probe this ip:port instead of broadcasting")
	cmd.Flags().IntVar(&timeoutMS, "timeout-ms", int(discovery.DefaultTimeout/time.Millisecond), "how long to wait for answers")
	return cmd
}

// ExposeOptions holds flags for the sync expose command.
type ExposeOptions struct {
	*RootOptions
	Name           string
	TestBind       string
	TestUDPPort    uint16
	TestTCPPort    uint16
	TestOnce       bool
	TestPrintPorts bool
}

func newSyncExposeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExposeOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "expose",
		Short: "Wait for LAN sync sessions from other devices",
		Long: `Answer discovery requests and accept sync sessions until interrupted.
Each inbound session must be approved on the terminal unless
BANKERO_SYNC_AUTO_ACCEPT is set to 1, true, yes or y.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpose(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "device name to announce (saved to config)")
	cmd.Flags().StringVar(&opts.TestBind, "test-bind", "", "bind address (testing)")
	cmd.Flags().Uint16Var(&opts.TestUDPPort, "test-udp-port", discovery.DefaultDiscoveryPort, "UDP discovery port, 0 for ephemeral (testing)")
	cmd.Flags().Uint16Var(&opts.TestTCPPort, "test-tcp-port", discovery.DefaultSyncPort, "TCP sync port, 0 for ephemeral (testing)")
	cmd.Flags().BoolVar(&opts.TestOnce, "test-once", false, "serve one session then exit; implies auto-accept (testing)")
	cmd.Flags().BoolVar(&opts.TestPrintPorts, "test-print-ports", false, "print bound addresses (testing)")
	for _, name := range []string{"test-bind", "test-udp-port", "test-tcp-port", "test-once", "test-print-ports"} {
		_ = cmd.Flags().MarkHidden(name)
	}
	return cmd
}

func runExpose(opts *ExposeOptions, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	if name := config.NormalizeDeviceName(opts.Name); name != "" && name != a.cfg.DeviceName {
		a.cfg.DeviceName = name
		if err := a.saveConfig(); err != nil {
			return err
		}
	}

	var gate lansync.AcceptGate = lansync.NewPromptGate(cmd.InOrStdin(), cmd.OutOrStdout())
	if opts.TestOnce || config.Truthy(os.Getenv(config.EnvAutoAccept)) {
		gate = lansync.AutoAccept{}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	udpPort, tcpPort := opts.TestUDPPort, opts.TestTCPPort
	err = lansync.Expose(ctx, lansync.ExposeConfig{
		Workspace:  a.cfg.CurrentWorkspace,
		Identity:   a.identity(),
		BindIP:     opts.TestBind,
		UDPPort:    &udpPort,
		TCPPort:    &tcpPort,
		Gate:       gate,
		Once:       opts.TestOnce,
		PrintPorts: opts.TestPrintPorts,
		Out:        cmd.OutOrStdout(),
		Logger:     a.log,
	}, a.store)
	if err != nil {
		return err
	}
	a.log.Info("expose stopped")
	return nil
}

func runSyncPeer(opts *RootOptions, args []string, cmd *cobra.Command) error {
	if len(args) < 2 {
		return NewExitError(ExitCommandError, invalidSyncUsage)
	}
	handle, action := args[0], args[1]
	if !strings.HasPrefix(handle, "@") {
		return NewExitError(ExitCommandError, fmt.Sprintf(
			"Invalid peer handle '%s'. Expected like @1. Run: bankero sync discover", handle))
	}
	if action != "all" {
		return NewExitError(ExitCommandError, fmt.Sprintf("Unknown sync action '%s'. Only 'all' is supported.", action))
	}

	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	peers, err := discovery.LoadCache(a.paths.PeersFile())
	if err != nil {
		return err
	}
	peer, err := discovery.Resolve(peers, handle)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if a.opts.Format != "json" {
		fmt.Fprintln(out, "sync in-progress")
	}
	stats, err := lansync.Sync(cmd.Context(), peer.TCPAddr().String(), lansync.ClientConfig{
		Workspace: a.cfg.CurrentWorkspace,
		Identity:  a.identity(),
		Logger:    a.log,
	}, a.store)
	if err != nil {
		return err
	}
	if err := a.recordSync(); err != nil {
		return err
	}

	return a.formatter(cmd).Success(stats, func(w io.Writer) {
		fmt.Fprintln(w, "sync complete")
		fmt.Fprintln(w, "sync summary:")
		fmt.Fprintf(w, "- sent events: %d\n", stats.SentEvents)
		fmt.Fprintf(w, "- sent rates: %d\n", stats.SentRates)
		fmt.Fprintf(w, "- imported events: %d\n", stats.ImportedEvents)
		fmt.Fprintf(w, "- imported rates: %d\n", stats.ImportedRates)
		fmt.Fprintf(w, "- peer imported events: %d\n", stats.PeerImportedEvents)
		fmt.Fprintf(w, "- peer imported rates: %d\n", stats.PeerImportedRates)
	})
}
