package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd shows the connection status of every provider for a user.
var statusCmd = &cobra.Command{
	Use:   "status <user-id>",
	Short: "Show connection status for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	statuses, err := app.orch.StatusAll(context.Background(), args[0])
	if err != nil {
		return err
	}

	if globalFlags.JSON {
		raw, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	}

	for _, status := range statuses {
		state := "disconnected"
		if status.Connected {
			state = "connected"
		}
		last := "never"
		if status.LastSyncedAt != nil {
			last = status.LastSyncedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-12s %-12s last_sync=%s\n", status.Provider, state, last)
	}
	return nil
}
