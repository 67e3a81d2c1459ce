package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelbay/modelbay/internal/daemon"
	"github.com/modelbay/modelbay/internal/domain"
)

func init() {
	rootCmd.AddCommand(rmCmd)
}

var rmCmd = &cobra.Command{
	Use:   "rm MODEL",
	Short: "Remove an installed model and its artifact file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRm,
}

func runRm(cmd *cobra.Command, args []string) error {
	modelName := args[0]

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	err = d.Library.Remove(modelName)
	if errors.Is(err, domain.ErrArtifactNotFound) {
		// The argument may be a descriptor id rather than the installed name.
		if m, findErr := findInstalled(d, modelName); findErr == nil {
			modelName = m.Name
			err = d.Library.Remove(m.Name)
		}
	}
	if err != nil {
		return err
	}

	fmt.Printf("Removed %s\n", modelName)
	return nil
}

func findInstalled(d *daemon.Daemon, ref string) (domain.InstalledModel, error) {
	models, err := d.Library.List()
	if err != nil {
		return domain.InstalledModel{}, err
	}
	for _, m := range models {
		if m.DescriptorID == ref {
			return m, nil
		}
	}
	return domain.InstalledModel{}, fmt.Errorf("%s: %w", ref, domain.ErrArtifactNotFound)
}
