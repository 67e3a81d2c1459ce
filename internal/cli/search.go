package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelbay/modelbay/internal/daemon"
	"github.com/modelbay/modelbay/internal/domain"
	"github.com/modelbay/modelbay/internal/infra/catalog"
)

func init() {
	searchCmd.Flags().StringVar(&searchRuntime, "runtime", "", "Only show models for one runtime (gguf, mlx, onnx)")
	searchCmd.Flags().BoolVar(&searchCompatible, "compatible", false, "Only show models this machine can run")
	searchCmd.Flags().StringVar(&searchMaxSize, "max-size", "", "Only show models up to this size (e.g. 8GB)")
	rootCmd.AddCommand(searchCmd)
}

var (
	searchRuntime    string
	searchCompatible bool
	searchMaxSize    string
)

var searchCmd = &cobra.Command{
	Use:   "search [QUERY]",
	Short: "Search the merged model catalog",
	Long: `Search models across all configured hosts. QUERY matches names and tags.
With no QUERY, lists the whole catalog.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	var maxSize int64
	if searchMaxSize != "" {
		n, err := domain.ParseSize(searchMaxSize)
		if err != nil {
			return fmt.Errorf("invalid --max-size %q: %w", searchMaxSize, err)
		}
		maxSize = n
	}

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	if _, ok := d.Catalog.LastRefresh(); !ok {
		fmt.Fprintln(os.Stderr, "catalog empty, refreshing...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := d.Catalog.Refresh(ctx); err != nil {
			return err
		}
	}

	query := ""
	if len(args) > 0 {
		query = strings.ToLower(args[0])
	}

	snap := d.Catalog.Current()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tRUNTIME\tSOURCE\tCOMPAT")

	shown := 0
	for _, m := range snap.Models {
		if query != "" && !matchesModel(m, query) {
			continue
		}
		if searchRuntime != "" && !m.SupportsRuntime(domain.Runtime(searchRuntime)) {
			continue
		}
		// Unknown sizes report 0 and stay visible under a cap.
		if maxSize > 0 && m.SizeBytes > maxSize {
			continue
		}
		verdict := catalog.Score(m, d.Profile)
		if searchCompatible && verdict != domain.VerdictCompatible {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			m.Name,
			sizeCell(m.SizeBytes),
			joinRuntimes(m.Runtimes),
			m.Source,
			verdict,
		)
		shown++
	}

	if shown == 0 {
		fmt.Println("No models matched.")
		return nil
	}
	return w.Flush()
}

// matchesModel reports whether the lowercased query hits the name or a tag.
func matchesModel(m domain.ModelDescriptor, query string) bool {
	if strings.Contains(strings.ToLower(m.Name), query) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}
