package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turdm/turc/deeplink"
	"github.com/turdm/turc/probe"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add [urls...]",
		Short: "Queue downloads",
		Long:  "Queue one or more downloads. URLs come from positional args, a file via -f, or tur:// links handed over by a browser.",
		Run:   runAdd,
	}

	cmd.Flags().StringP("file", "f", "", "Read URLs from file (one per line)")
	cmd.Flags().StringP("output", "o", "", "Download directory")
	cmd.Flags().IntP("connections", "c", 0, "Connections per download (1-64)")
	cmd.Flags().StringP("limit", "l", "", "Speed limit (1M, 500K, 2G)")
	cmd.Flags().Bool("probe", false, "Print each URL's probed metadata before queueing")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	file, _ := cmd.Flags().GetString("file")
	output, _ := cmd.Flags().GetString("output")
	connections, _ := cmd.Flags().GetInt("connections")
	limit, _ := cmd.Flags().GetString("limit")
	doProbe, _ := cmd.Flags().GetBool("probe")

	var urls []string
	for _, arg := range args {
		req, err := deeplink.Parse(arg)
		switch {
		case err == nil:
			urls = append(urls, req.URL)
		case errors.Is(err, deeplink.ErrNotDeepLink):
			urls = append(urls, arg)
		default:
			exitErr("add", err)
		}
	}
	if file != "" {
		fromFile, err := readURLFile(file)
		if err != nil {
			exitErr("read url file", err)
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) == 0 {
		exitErr("add", fmt.Errorf("no URLs given (positional args or -f)"))
	}

	if doProbe {
		client, err := probe.New(daemonNetwork())
		if err != nil {
			exitErr("probe", err)
		}
		for _, u := range urls {
			info, err := client.Probe(cmd.Context(), u)
			if err != nil {
				exitErr("probe "+u, err)
			}
			b, _ := json.Marshal(info)
			fmt.Println(string(b))
		}
	}

	// Flag overrides land in settings before the queue call, so the
	// engine picks them up when it starts these downloads.
	if output != "" {
		putSetting("download.download_location", output)
	}
	if cmd.Flags().Changed("connections") {
		putSetting("download.num_threads", connections)
	}
	if limit != "" {
		putSetting("download.speed_limit", parseSize(limit))
	}

	var resp struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	}
	if err := apiPost("/api/downloads", map[string]any{"urls": urls}, &resp); err != nil {
		exitErr("add", err)
	}

	b, _ := json.Marshal(resp)
	fmt.Println(string(b))
}

func putSetting(path string, value any) {
	body := map[string]any{"path": path, "value": value}
	if err := apiPut("/api/settings", body, nil); err != nil {
		exitErr("set "+path, err)
	}
}

// readURLFile loads URLs from a text file, one per line. Blank lines
// and # comments are skipped.
func readURLFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var urls []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, nil
}
