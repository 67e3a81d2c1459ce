package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/modelbay/modelbay/internal/daemon"
	"github.com/modelbay/modelbay/internal/domain"
)

func init() {
	rootCmd.AddCommand(resumeCmd)
}

var resumeCmd = &cobra.Command{
	Use:   "resume ID-or-MODEL",
	Short: "Resume a paused or failed download from its last offset",
	Args:  cobra.ExactArgs(1),
	RunE:  runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	st, err := resolveTransfer(d, args[0])
	if err != nil {
		return err
	}

	switch st.Status {
	case domain.TransferPaused:
		err = d.Scheduler.Resume(st.ID)
	case domain.TransferFailed:
		err = d.Scheduler.Retry(st.ID)
	default:
		return fmt.Errorf("%s is %s: %w", st.Name, st.Status, domain.ErrInvalidTransition)
	}
	if err != nil {
		return err
	}

	if st.BytesReceived > 0 {
		fmt.Fprintf(os.Stderr, "resuming %s from %s\n", st.Name, domain.HumanSize(st.BytesReceived))
	}
	return watchTransfer(d, st.ID)
}
