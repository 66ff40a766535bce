package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facesync/internal/config"
	"github.com/kozaktomas/facesync/internal/logging"
	"github.com/kozaktomas/facesync/internal/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the synced faces state",
	Long:  `Print how many face IDs are recorded as synced in STATE_FILE, optionally listing them.`,
	Args:  cobra.NoArgs,
	RunE:  runState,
}

func init() {
	rootCmd.AddCommand(stateCmd)

	stateCmd.Flags().Bool("list", false, "List all synced face IDs")
	stateCmd.Flags().Bool("json", false, "Output as JSON")
}

type stateOutput struct {
	Path  string   `json:"path"`
	Count int      `json:"count"`
	IDs   []string `json:"synced_face_ids,omitempty"`
}

func runState(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	store := state.Open(cfg.Sync.StateFile, logging.Component("state"))

	out := stateOutput{Path: store.Path(), Count: store.Count()}
	if mustGetBool(cmd, "list") {
		out.IDs = store.IDs()
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(out)
	}

	fmt.Printf("State file:   %s\n", out.Path)
	fmt.Printf("Synced faces: %d\n", out.Count)
	for _, id := range out.IDs {
		fmt.Println(id)
	}
	return nil
}
