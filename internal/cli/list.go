package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/modelbay/modelbay/internal/daemon"
	"github.com/modelbay/modelbay/internal/domain"
	"github.com/modelbay/modelbay/internal/infra/transfer"
)

func init() {
	listCmd.Flags().BoolVar(&listVerify, "verify", false, "Re-check each artifact against its recorded digest")
	rootCmd.AddCommand(listCmd)
}

var listVerify bool

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installed models",
	RunE:    runList,
}

func runList(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	models, err := d.Library.List()
	if err != nil {
		return err
	}

	if len(models) == 0 {
		fmt.Println("No models installed. Run 'modelbay pull <model>' to get started.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "NAME\tSIZE\tRUNTIME\tINSTALLED")
	if listVerify {
		fmt.Fprint(w, "\tSTATUS")
	}
	fmt.Fprintln(w)

	verifier := transfer.NewVerifier()
	bad := 0
	for _, m := range models {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s",
			m.Name,
			domain.HumanSize(m.SizeBytes),
			joinRuntimes(m.Runtimes),
			m.InstalledAt.Format("2006-01-02 15:04"),
		)
		if listVerify {
			status, ok := verifyStatus(verifier, m)
			if !ok {
				bad++
			}
			fmt.Fprintf(w, "\t%s", status)
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if bad > 0 {
		return fmt.Errorf("%d of %d models failed verification", bad, len(models))
	}
	return nil
}

// verifyStatus re-hashes one installed artifact against its recorded digest.
// Models installed without a digest cannot be checked and do not count as
// failures.
func verifyStatus(v *transfer.Verifier, m domain.InstalledModel) (string, bool) {
	if m.Digest == "" {
		return "no digest", true
	}
	err := v.Verify(m.Path, m.Digest)
	if err == nil {
		return "ok", true
	}
	if os.IsNotExist(err) {
		return "missing", false
	}
	var terr *domain.TransferError
	if errors.As(err, &terr) && terr.Kind == domain.TransferDigestMismatch {
		return "corrupt", false
	}
	return "error: " + err.Error(), false
}
