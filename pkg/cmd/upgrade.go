package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/getsavvyinc/upgrade-cli"
	"github.com/spf13/cobra"

	"github.com/apoxy-dev/shorty/build"
)

const (
	owner = "apoxy-dev"
	repo  = "shorty"
)

// upgradeCmd upgrades the binary to the latest release.
var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade shorty to the latest version",
	Long:  "Upgrade shorty to the latest released version.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		p, err := os.Executable()
		if err != nil {
			return fmt.Errorf("unable to find the current executable: %w", err)
		}
		v := build.BuildVersion

		u := upgrade.NewUpgrader(owner, repo, p)
		if ok, err := u.IsNewVersionAvailable(context.Background(), v); err != nil {
			return fmt.Errorf("unable to check for new version: %w", err)
		} else if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "shorty %s is the latest version.\n", v)
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Upgrading shorty to the latest version...")
		if err := u.Upgrade(cmd.Context(), v); err != nil {
			return fmt.Errorf("unable to upgrade to the latest version: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Upgrade complete!")

		return nil
	},
}

// versionCmd prints the build version.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the shorty version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), build.Version())
	},
}

func init() {
	rootCmd.AddCommand(upgradeCmd, versionCmd)
}
