package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "cancel <id>...",
		Short: "Cancel downloads",
		Long:  "Cancel downloads and drop them from the registry. The rows disappear locally even when the engine cannot be reached.",
		Run:   runCancel,
	}

	RootCmd.AddCommand(cmd)
}

func runCancel(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		exitErr("cancel", fmt.Errorf("at least one download id is required"))
	}

	for _, id := range args {
		if err := apiDelete("/api/downloads/"+id, nil); err != nil {
			exitErr("cancel "+id, err)
		}
		fmt.Println(id + " cancelled")
	}
}
