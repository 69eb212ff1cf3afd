package cli

import (
	"bufio"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live download changes",
		Long:  "Tail the daemon's change feed. Prints one JSON object per change until interrupted.",
		Run:   runWatch,
	}

	RootCmd.AddCommand(cmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	// The feed stays open indefinitely, so no client timeout here.
	client := &http.Client{}
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, apiBase()+"/api/events", nil)
	if err != nil {
		exitErr("watch", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		exitErr("watch", fmt.Errorf("daemon at %s: %w", apiBase(), err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		exitErr("watch", fmt.Errorf("unexpected status %s", resp.Status))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if data, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
			fmt.Println(data)
		}
	}
	if err := scanner.Err(); err != nil {
		exitErr("watch", err)
	}
}
