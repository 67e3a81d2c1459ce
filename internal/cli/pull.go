package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/modelbay/modelbay/internal/daemon"
	"github.com/modelbay/modelbay/internal/domain"
)

func init() {
	pullCmd.Flags().StringVar(&pullDigest, "digest", "", "Expected sha256 digest (overrides catalog metadata)")
	rootCmd.AddCommand(pullCmd)
}

var pullDigest string

var pullCmd = &cobra.Command{
	Use:   "pull MODEL",
	Short: "Download a model artifact and verify it",
	Long: `Pull downloads a model from its host with resume support and installs it
into the local library after sha256 verification. An interrupted pull picks up
from its last byte offset on the next run.`,
	Args: cobra.ExactArgs(1),
	RunE: runPull,
}

func runPull(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	desc, err := findModel(d, args[0])
	if err != nil {
		return err
	}
	if pullDigest != "" {
		desc.Digest = pullDigest
	}

	if installed, err := d.Library.Get(desc.Name); err == nil {
		fmt.Printf("%s already installed at %s\n", desc.Name, installed.Path)
		return nil
	}

	st, err := d.Scheduler.Enqueue(desc)
	if err != nil {
		return err
	}
	if st.BytesReceived > 0 {
		fmt.Fprintf(os.Stderr, "resuming %s from %s\n", desc.Name, domain.HumanSize(st.BytesReceived))
	} else {
		fmt.Printf("Pulling %s (%s)...\n", desc.Name, sizeCell(st.TotalBytes))
	}

	// An enqueue that found an at-rest transfer hands back its handle
	// without starting it.
	switch st.Status {
	case domain.TransferPaused:
		if err := d.Scheduler.Resume(st.ID); err != nil {
			return err
		}
	case domain.TransferFailed:
		if err := d.Scheduler.Retry(st.ID); err != nil {
			return err
		}
	}

	return watchTransfer(d, st.ID)
}
