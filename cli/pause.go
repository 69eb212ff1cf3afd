package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turdm/turc/registry"
)

func init() {
	cmd := &cobra.Command{
		Use:   "pause <id>...",
		Short: "Pause downloads",
		Run:   runPause,
	}

	RootCmd.AddCommand(cmd)
}

func runPause(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		exitErr("pause", fmt.Errorf("at least one download id is required"))
	}

	var rows []registry.Download
	for _, id := range args {
		var d registry.Download
		if err := apiPost("/api/downloads/"+id+"/pause", nil, &d); err != nil {
			exitErr("pause "+id, err)
		}
		rows = append(rows, d)
	}

	b, _ := json.MarshalIndent(rows, "", "  ")
	fmt.Println(string(b))
}
