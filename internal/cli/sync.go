package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// syncCmd runs one sync for a provider and user.
var syncCmd = &cobra.Command{
	Use:   "sync <provider> <user-id>",
	Short: "Run one sync for a provider and user",
	Long: `Run a single incremental sync for a connected provider.

Example:
  linkhub sync strava user-42`,
	Args: cobra.ExactArgs(2),
	RunE: runSync,
}

func init() {
	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.orch.Sync(context.Background(), args[0], args[1])
	if err != nil {
		return err
	}

	if globalFlags.JSON {
		raw, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	}

	fmt.Printf("synced %s at %s: fetched=%d processed=%d skipped=%d\n",
		args[0], result.SyncedAt.Format("15:04:05"),
		result.Details.Fetched, result.Details.Processed, result.Details.Skipped)
	for category, count := range result.Counts {
		fmt.Printf("  %-16s %d\n", category, count)
	}
	return nil
}
