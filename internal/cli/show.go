package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modelbay/modelbay/internal/daemon"
	"github.com/modelbay/modelbay/internal/domain"
	"github.com/modelbay/modelbay/internal/infra/catalog"
)

func init() {
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show MODEL",
	Short: "Show detailed information about a catalog model",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	desc, err := findModel(d, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Name:         %s\n", desc.Name)
	fmt.Printf("ID:           %s\n", desc.ID)
	fmt.Printf("Source:       %s\n", desc.Source)
	if desc.Version != "" {
		fmt.Printf("Version:      %s\n", desc.Version)
	}
	fmt.Printf("Size:         %s\n", sizeCell(desc.SizeBytes))
	if desc.Quantization != "" {
		fmt.Printf("Quantization: %s\n", desc.Quantization)
	}
	fmt.Printf("Runtimes:     %s\n", joinRuntimes(desc.Runtimes))
	if len(desc.Tags) > 0 {
		fmt.Printf("Tags:         %s\n", strings.Join(desc.Tags, ", "))
	}
	if desc.Digest != "" {
		fmt.Printf("Digest:       %s\n", desc.Digest)
	}
	fmt.Printf("Compat:       %s on %s\n", catalog.Score(desc, d.Profile), d.Profile)

	if installed, err := d.Library.Get(desc.Name); err == nil {
		fmt.Printf("Installed:    %s (%s)\n", installed.Path, installed.InstalledAt.Format("2006-01-02 15:04"))
	} else if st, err := resolveTransfer(d, desc.ID); err == nil && st.Status != domain.TransferCompleted {
		fmt.Printf("Download:     %s, %s of %s\n", st.Status, domain.HumanSize(st.BytesReceived), sizeCell(st.TotalBytes))
	}

	return nil
}
