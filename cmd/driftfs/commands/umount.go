package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftfs/driftfs/internal/protocol/fuse"
)

var umountCmd = &cobra.Command{
	Use:   "umount <mountpoint>",
	Short: "Unmount a mounted filesystem",
	Long: `Unmount a DriftFS filesystem.

The serving process notices the detach and exits on its own. This is the
same as running fusermount -u on the mountpoint.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := fuse.Unmount(args[0]); err != nil {
			return fmt.Errorf("failed to unmount %s: %w", args[0], err)
		}
		fmt.Printf("Unmounted %s\n", args[0])
		return nil
	},
}
