package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// providersCmd lists the registered providers.
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the registered providers",
	RunE:  runProviders,
}

func init() {
	RootCmd.AddCommand(providersCmd)
}

func runProviders(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	names := app.orch.Providers()
	if globalFlags.JSON {
		raw, err := json.MarshalIndent(names, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	}

	for _, name := range names {
		pc := app.cfg.Provider(name)
		mode := "live"
		if pc.UseMockData {
			mode = "mock"
		}
		fmt.Printf("%-12s window=%dd mode=%s\n", name, pc.WindowDays, mode)
	}
	return nil
}
