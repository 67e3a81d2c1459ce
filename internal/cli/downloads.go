package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/modelbay/modelbay/internal/daemon"
	"github.com/modelbay/modelbay/internal/domain"
)

func init() {
	rootCmd.AddCommand(downloadsCmd)
}

var downloadsCmd = &cobra.Command{
	Use:     "downloads",
	Aliases: []string{"dl"},
	Short:   "List transfers and their progress",
	RunE:    runDownloads,
}

func runDownloads(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	states := d.Scheduler.States()
	if len(states) == 0 {
		fmt.Println("No downloads. Run 'modelbay pull <model>' to start one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tSTATUS\tPROGRESS\tRECEIVED\tERROR")
	for _, st := range states {
		progress := "?"
		if st.TotalBytes > 0 {
			progress = fmt.Sprintf("%.0f%%", st.Progress())
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s / %s\t%s\n",
			shortID(st.ID),
			st.Name,
			st.Status,
			progress,
			domain.HumanSize(st.BytesReceived),
			sizeCell(st.TotalBytes),
			st.LastError,
		)
	}
	return w.Flush()
}

// shortID trims a uuid for table display; full ids still resolve everywhere.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
