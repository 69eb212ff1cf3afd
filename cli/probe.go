package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turdm/turc/probe"
	"github.com/turdm/turc/settings"
)

func init() {
	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Inspect a URL without downloading",
		Long:  "Fetch the metadata a download would start from: filename, size, content type and resume support. Uses the daemon's network settings when it is running, defaults otherwise.",
		Run:   runProbe,
	}

	RootCmd.AddCommand(cmd)
}

func runProbe(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		exitErr("probe", fmt.Errorf("exactly one URL is required"))
	}

	client, err := probe.New(daemonNetwork())
	if err != nil {
		exitErr("probe", err)
	}
	info, err := client.Probe(cmd.Context(), args[0])
	if err != nil {
		exitErr("probe", err)
	}

	b, _ := json.MarshalIndent(info, "", "  ")
	fmt.Println(string(b))
}

// daemonNetwork fetches the daemon's network settings group so probes
// leave with the same identity and proxy the engine would use. Falls
// back to compiled-in defaults when the daemon is unreachable.
func daemonNetwork() settings.NetworkGroup {
	network := settings.Defaults().Network
	var doc settings.Document
	if err := apiGet("/api/settings", &doc); err == nil {
		network = doc.Network
	}
	return network
}
