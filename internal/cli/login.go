package cli

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/bankero/internal/config"
)

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	SyncDir   string
	Name      string
	RegenName bool
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Show or set this device's identity and sync folder",
		Long: `Show this device's identity, optionally setting the shared sync folder
or the device name announced to peers.

Example:
  bankero login --sync-dir ~/Dropbox
  bankero login --name kitchen_laptop
  bankero login --regen-name`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SyncDir, "sync-dir", "", "shared folder used by 'sync now'")
	cmd.Flags().StringVar(&opts.Name, "name", "", "device name announced to peers")
	cmd.Flags().BoolVar(&opts.RegenName, "regen-name", false, "pick a new random device name")
	cmd.MarkFlagsMutuallyExclusive("name", "regen-name")

	return cmd
}

type loginResult struct {
	DeviceID   uuid.UUID `json:"device_id"`
	DeviceName string    `json:"device_name"`
	Workspace  string    `json:"workspace"`
	SyncDir    string    `json:"sync_dir,omitempty"`
}

func runLogin(opts *LoginOptions, cmd *cobra.Command) error {
	a, err := loadApp(opts.RootOptions)
	if err != nil {
		return err
	}

	changed := false
	if opts.SyncDir != "" {
		a.cfg.SyncDir = opts.SyncDir
		changed = true
	}
	if opts.Name != "" {
		a.cfg.DeviceName = config.NormalizeDeviceName(opts.Name)
		changed = true
	} else if opts.RegenName {
		a.cfg.DeviceName = config.FunnyName(uuid.New())
		changed = true
	}
	if changed {
		if err := a.saveConfig(); err != nil {
			return err
		}
		a.log.Debug("config updated", "path", a.paths.ConfigFile())
	}

	res := loginResult{
		DeviceID:   a.cfg.DeviceID,
		DeviceName: a.cfg.DeviceName,
		Workspace:  a.cfg.CurrentWorkspace,
		SyncDir:    a.cfg.SyncDir,
	}
	return a.formatter(cmd).Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "device_id\t%s\n", res.DeviceID)
		fmt.Fprintf(w, "device_name\t%s\n", res.DeviceName)
		fmt.Fprintf(w, "workspace\t%s\n", res.Workspace)
		fmt.Fprintf(w, "sync_dir\t%s\n", orPlaceholder(res.SyncDir, "<not set>"))
	})
}

func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}
