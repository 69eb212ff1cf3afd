package cli

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and change settings",
	}

	getCmd := &cobra.Command{
		Use:   "get [path]",
		Short: "Print the settings document, or one dotted path",
		Run:   runSettingsGet,
	}

	setCmd := &cobra.Command{
		Use:   "set <path> <value>",
		Short: "Change one setting",
		Long:  "Change one setting by dotted path, e.g. `turc settings set app.theme dark`. The value is parsed as JSON first; anything that is not valid JSON is sent as a string.",
		Run:   runSettingsSet,
	}

	cmd.AddCommand(getCmd, setCmd)
	RootCmd.AddCommand(cmd)
}

func runSettingsGet(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		var doc any
		if err := apiGet("/api/settings", &doc); err != nil {
			exitErr("settings get", err)
		}
		b, _ := json.MarshalIndent(doc, "", "  ")
		fmt.Println(string(b))
		return
	}

	var resp struct {
		Path  string `json:"path"`
		Value any    `json:"value"`
	}
	if err := apiGet("/api/settings/"+url.PathEscape(args[0]), &resp); err != nil {
		exitErr("settings get", err)
	}
	b, _ := json.MarshalIndent(resp.Value, "", "  ")
	fmt.Println(string(b))
}

func runSettingsSet(cmd *cobra.Command, args []string) {
	if len(args) != 2 {
		exitErr("settings set", fmt.Errorf("usage: turc settings set <path> <value>"))
	}
	path, raw := args[0], args[1]

	// JSON first, so numbers and booleans keep their type; a bare word
	// like "dark" falls back to a string.
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}

	var resp struct {
		Path  string `json:"path"`
		Value any    `json:"value"`
	}
	if err := apiPut("/api/settings", map[string]any{"path": path, "value": value}, &resp); err != nil {
		exitErr("settings set", err)
	}
	b, _ := json.Marshal(resp)
	fmt.Println(string(b))
}
