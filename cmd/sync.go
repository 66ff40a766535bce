package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facesync/internal/config"
	"github.com/kozaktomas/facesync/internal/status"
	"github.com/kozaktomas/facesync/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync now",
	Long: `Run a single sync in the foreground.
Without flags every named person is synced, limited to MAX_FACES_PER_PERSON
faces each. Use --person to sync one person and --faces to sync an explicit
list of that person's faces, e.g. the output of "facesync suggest".`,
	Example: `  facesync sync
  facesync sync --person 6f1c... --faces f1,f2,f3
  facesync sync --json`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().String("person", "", "Immich person ID to sync")
	syncCmd.Flags().StringSlice("faces", nil, "Explicit face IDs of --person to sync")
	syncCmd.Flags().Bool("json", false, "Output the run summary as JSON")
	syncCmd.Flags().Bool("force", false, "Re-sync faces already recorded in the state file")
}

// progressSink drives a terminal progress bar from run events.
type progressSink struct {
	bar    *progressbar.ProgressBar
	person string
}

func newProgressSink() *progressSink {
	return &progressSink{
		bar: progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Fetching people"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("faces"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		),
	}
}

func (p *progressSink) HandleEvent(ev syncer.Event) {
	switch ev.Type {
	case syncer.EventProgress:
		pr := ev.Progress
		if pr == nil {
			return
		}
		if pr.Person != p.person {
			p.person = pr.Person
			p.bar.Reset()
			p.bar.ChangeMax(pr.Total)
			p.bar.Describe(pr.Person)
		}
		_ = p.bar.Set(pr.Processed)
	case syncer.EventRunFinished:
		_ = p.bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if mustGetBool(cmd, "force") {
		cfg.Sync.SkipExisting = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	jsonOutput := mustGetBool(cmd, "json")
	var sel *syncer.Selection
	if person := mustGetString(cmd, "person"); person != "" {
		sel = &syncer.Selection{PersonID: person, FaceIDs: mustGetStringSlice(cmd, "faces")}
	} else if len(mustGetStringSlice(cmd, "faces")) > 0 {
		return errors.New("--faces requires --person")
	}

	var sinks []syncer.Sink
	if !jsonOutput {
		sinks = append(sinks, newProgressSink())
	}
	svc, err := newSyncServices(cfg, sinks...)
	if err != nil {
		return err
	}

	summary, err := svc.syncer.Run(context.Background(), sel)
	if err != nil {
		return err
	}

	if jsonOutput {
		if err := outputJSON(summary); err != nil {
			return err
		}
	} else {
		printSummary(summary, svc.tracker.Snapshot().Logs)
	}

	if summary.Status == status.OutcomeFailure {
		return errors.New("sync failed")
	}
	return nil
}

func printSummary(s status.RunSummary, logs []string) {
	for _, line := range logs {
		if strings.HasPrefix(line, "ERROR:") || strings.HasPrefix(line, "WARN:") {
			fmt.Println(line)
		}
	}
	fmt.Printf("\n%s\n", s.Message)
	fmt.Printf("Status:   %s\n", s.Status)
	fmt.Printf("Trained:  %d\n", s.Trained)
	fmt.Printf("Skipped:  %d\n", s.Skipped)
	fmt.Printf("Failed:   %d\n", s.Failed)
	if s.FailedPeople > 0 {
		fmt.Printf("Failed people: %d\n", s.FailedPeople)
	}
	fmt.Printf("Duration: %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
}
