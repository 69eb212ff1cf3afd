package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turdm/turc/registry"
)

func init() {
	cmd := &cobra.Command{
		Use:   "resume <id>...",
		Short: "Resume paused downloads",
		Run:   runResume,
	}

	RootCmd.AddCommand(cmd)
}

func runResume(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		exitErr("resume", fmt.Errorf("at least one download id is required"))
	}

	// Several ids go out as one batched engine command.
	if len(args) > 1 {
		var resp struct {
			Status string `json:"status"`
			Count  int    `json:"count"`
		}
		if err := apiPost("/api/downloads/resume", map[string]any{"ids": args}, &resp); err != nil {
			exitErr("resume", err)
		}
		b, _ := json.Marshal(resp)
		fmt.Println(string(b))
		return
	}

	var d registry.Download
	if err := apiPost("/api/downloads/"+args[0]+"/resume", nil, &d); err != nil {
		exitErr("resume "+args[0], err)
	}
	b, _ := json.MarshalIndent(d, "", "  ")
	fmt.Println(string(b))
}
