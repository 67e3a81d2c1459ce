package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelbay/modelbay/internal/daemon"
	"github.com/modelbay/modelbay/internal/domain"
)

func init() {
	rootCmd.AddCommand(pauseCmd)
}

var pauseCmd = &cobra.Command{
	Use:   "pause ID-or-MODEL",
	Short: "Pause a download, keeping its bytes for resume",
	Args:  cobra.ExactArgs(1),
	RunE:  runPause,
}

func runPause(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	st, err := resolveTransfer(d, args[0])
	if err != nil {
		return err
	}
	if st.Status == domain.TransferPaused {
		fmt.Printf("%s already paused at %s\n", st.Name, domain.HumanSize(st.BytesReceived))
		return nil
	}

	if err := d.Scheduler.Pause(st.ID); err != nil {
		return err
	}

	// A running transfer parks once its stream notices the signal.
	cur, err := d.Scheduler.Get(st.ID)
	for i := 0; err == nil && cur.Status != domain.TransferPaused && i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		cur, err = d.Scheduler.Get(st.ID)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Paused %s at %s\n", cur.Name, domain.HumanSize(cur.BytesReceived))
	return nil
}
