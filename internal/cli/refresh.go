package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelbay/modelbay/internal/daemon"
)

func init() {
	rootCmd.AddCommand(refreshCmd)
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the model catalog from all hosts",
	RunE:  runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fmt.Println("Refreshing catalog...")
	start := time.Now()
	snap, err := d.Catalog.Refresh(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Catalog refreshed: %d models in %s\n", snap.Len(), time.Since(start).Round(time.Millisecond))
	return nil
}
