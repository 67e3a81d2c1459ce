package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelbay/modelbay/internal/daemon"
)

func init() {
	rootCmd.AddCommand(cancelCmd)
}

var cancelCmd = &cobra.Command{
	Use:   "cancel ID-or-MODEL",
	Short: "Cancel a download and delete its partial file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	st, err := resolveTransfer(d, args[0])
	if err != nil {
		return err
	}
	if err := d.Scheduler.Cancel(st.ID); err != nil {
		return err
	}

	fmt.Printf("Cancelled %s\n", st.Name)
	return nil
}
