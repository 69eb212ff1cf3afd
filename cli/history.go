package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turdm/turc/registry"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show download history",
		Long:  "Show finished downloads from the history database. History is recorded only while session.history is on.",
		Run:   runHistory,
	}

	cmd.Flags().IntP("limit", "l", 100, "Max records")
	cmd.Flags().Bool("purge", false, "Delete all history records instead of listing")

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	purge, _ := cmd.Flags().GetBool("purge")

	if purge {
		var resp struct {
			Status string `json:"status"`
		}
		if err := apiDelete("/api/history", &resp); err != nil {
			exitErr("purge history", err)
		}
		b, _ := json.Marshal(resp)
		fmt.Println(string(b))
		return
	}

	var records []*registry.HistoryRecord
	if err := apiGet("/api/history?limit="+strconv.Itoa(limit), &records); err != nil {
		exitErr("history", err)
	}

	b, _ := json.MarshalIndent(records, "", "  ")
	fmt.Println(string(b))
}
