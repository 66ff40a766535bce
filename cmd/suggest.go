package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facesync/internal/config"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <person-id>",
	Short: "Suggest the best, most varied faces of a person",
	Long: `Score up to --max-candidates faces of a person on sharpness, pose and
lighting and pick at most --k of them that differ from each other. The result
can be passed to "facesync sync --person <id> --faces ...". Requires
EMBEDDING_URL.`,
	Example: `  facesync suggest 6f1c...
  facesync suggest 6f1c... --k 3 --max-candidates 20 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)

	suggestCmd.Flags().Int("k", 0, "Number of faces to suggest (default CURATION_K)")
	suggestCmd.Flags().Int("max-candidates", 0, "Number of faces to analyze (default CURATION_MAX_CANDIDATES)")
	suggestCmd.Flags().Bool("json", false, "Output as JSON")
}

func runSuggest(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.ValidateCatalog(); err != nil {
		return err
	}

	catalog, err := newCatalog(cfg)
	if err != nil {
		return err
	}
	service := newCurationService(cfg, catalog, newDetector(cfg))

	personID := args[0]
	suggestion, err := service.Curate(context.Background(), personID,
		mustGetInt(cmd, "max-candidates"), mustGetInt(cmd, "k"))
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(suggestion)
	}

	if !suggestion.ModelAvailable {
		fmt.Println("Face model unavailable, no suggestions. Check EMBEDDING_URL.")
		return nil
	}

	fmt.Printf("Analyzed %d of %d candidates (%d dropped)\n\n", suggestion.Analyzed, suggestion.Candidates, suggestion.Dropped)
	if len(suggestion.Faces) == 0 {
		fmt.Println("No suitable faces found.")
		return nil
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("#", "Face", "Overall", "Clarity", "Frontal", "Light")
	for i, f := range suggestion.Faces {
		if err := table.Append([]string{
			strconv.Itoa(i + 1),
			f.FaceID,
			formatScore(f.Overall),
			formatScore(f.Clarity),
			formatScore(f.Frontal),
			formatScore(f.Lighting),
		}); err != nil {
			return fmt.Errorf("rendering table: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}
	fmt.Printf("\nfacesync sync --person %s --faces %s\n", personID, strings.Join(suggestion.FaceIDs, ","))
	return nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
