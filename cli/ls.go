package cli

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/turdm/turc/registry"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List downloads",
		Long:  "List the downloads the daemon currently tracks, most recent activity first.",
		Run:   runLs,
	}

	cmd.Flags().String("filter", "", "Filter: all, completed or in_progress")

	RootCmd.AddCommand(cmd)
}

func runLs(cmd *cobra.Command, args []string) {
	filter, _ := cmd.Flags().GetString("filter")

	path := "/api/downloads"
	if filter != "" {
		path += "?filter=" + url.QueryEscape(filter)
	}

	var downloads []registry.Download
	if err := apiGet(path, &downloads); err != nil {
		exitErr("ls", err)
	}

	b, _ := json.MarshalIndent(downloads, "", "  ")
	fmt.Println(string(b))
}
