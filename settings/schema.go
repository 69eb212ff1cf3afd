package settings

import (
	"os"
	"path/filepath"
)

// Document is the full nested settings record. Field tags mirror the
// persisted JSON written by earlier releases, so existing settings.json
// files keep loading as the schema grows.
type Document struct {
	App                  AppGroup       `json:"app"`
	Shortcuts            ShortcutsGroup `json:"shortcuts"`
	Download             DownloadGroup  `json:"download"`
	Thread               ThreadGroup    `json:"thread"`
	Session              SessionGroup   `json:"session"`
	Network              NetworkGroup   `json:"network"`
	SendAnonymousMetrics bool           `json:"send_anonymous_metrics"`
	ShowNotifications    bool           `json:"show_notifications"`
}

// AppGroup holds interface and appearance flags.
type AppGroup struct {
	ShowTrayIcon         bool   `json:"show_tray_icon"`
	QuitOnClose          bool   `json:"quit_on_close"`
	Sidebar              string `json:"sidebar"`
	Theme                string `json:"theme"`
	ButtonLabel          string `json:"button_label"`
	ShowDownloadProgress bool   `json:"show_download_progress"`
	ShowSegmentProgress  bool   `json:"show_segment_progress"`
	Autostart            bool   `json:"autostart"`
}

// ShortcutsGroup holds keyboard shortcut bindings.
type ShortcutsGroup struct {
	GoHome         string `json:"go_home"`
	OpenSettings   string `json:"open_settings"`
	AddDownload    string `json:"add_download"`
	OpenDetails    string `json:"open_details"`
	OpenHistory    string `json:"open_history"`
	ToggleSidebar  string `json:"toggle_sidebar"`
	CancelDownload string `json:"cancel_download"`
	QuitApp        string `json:"quit_app"`
}

// DownloadGroup holds per-download engine tunables.
type DownloadGroup struct {
	Location         string `json:"download_location"`
	NumThreads       int    `json:"num_threads"`
	ChunkSize        int    `json:"chunk_size"`
	SocketBufferSize int    `json:"socket_buffer_size"`
	SpeedLimit       int64  `json:"speed_limit"`
}

// ThreadGroup holds connection-count tunables.
type ThreadGroup struct {
	TotalConnections   int `json:"total_connections"`
	PerTaskConnections int `json:"per_task_connections"`
}

// SessionGroup holds persistence flags.
type SessionGroup struct {
	History  bool `json:"history"`
	Metadata bool `json:"metadata"`
}

// NetworkGroup holds HTTP client behaviour shared by the probe and the
// engine. Added after the first release; absent in old persisted
// documents, which is why load deep-merges over defaults.
type NetworkGroup struct {
	UserAgent          string     `json:"user_agent"`
	CustomUserAgent    string     `json:"custom_user_agent"`
	ConnectTimeoutSecs int        `json:"connect_timeout_secs"`
	ReadTimeoutSecs    int        `json:"read_timeout_secs"`
	AllowInsecure      bool       `json:"allow_insecure"`
	RetryCount         int        `json:"retry_count"`
	RetryDelayMs       int        `json:"retry_delay_ms"`
	Proxy              ProxyGroup `json:"proxy"`
}

// ProxyGroup configures an optional outbound proxy.
type ProxyGroup struct {
	Enabled     bool   `json:"enabled"`
	Type        string `json:"proxy_type"` // "http", "https" or "socks5"
	Host        string `json:"host"`
	Port        int    `json:"port"`
	AuthEnabled bool   `json:"auth_enabled"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

// Defaults returns the compiled-in document used at first run and as the
// base of every load.
func Defaults() Document {
	return Document{
		App: AppGroup{
			ShowTrayIcon:         true,
			QuitOnClose:          false,
			Sidebar:              "left",
			Theme:                "system",
			ButtonLabel:          "both",
			ShowDownloadProgress: true,
			ShowSegmentProgress:  true,
			Autostart:            false,
		},
		Shortcuts: ShortcutsGroup{
			GoHome:         "Ctrl+K",
			OpenSettings:   "Ctrl+P",
			AddDownload:    "Ctrl+N",
			OpenDetails:    "Ctrl+D",
			OpenHistory:    "Ctrl+H",
			ToggleSidebar:  "Ctrl+L",
			CancelDownload: "Ctrl+C",
			QuitApp:        "Ctrl+Q",
		},
		Download: DownloadGroup{
			Location:         defaultDownloadDir(),
			NumThreads:       8,
			ChunkSize:        16,
			SocketBufferSize: 0,
			SpeedLimit:       0,
		},
		Thread: ThreadGroup{
			TotalConnections:   1,
			PerTaskConnections: 1,
		},
		Session: SessionGroup{
			History:  false,
			Metadata: false,
		},
		Network: NetworkGroup{
			UserAgent:          "chrome",
			CustomUserAgent:    "",
			ConnectTimeoutSecs: 30,
			ReadTimeoutSecs:    30,
			AllowInsecure:      false,
			RetryCount:         3,
			RetryDelayMs:       1000,
			Proxy: ProxyGroup{
				Enabled: false,
				Type:    "http",
				Host:    "",
				Port:    8080,
			},
		},
		SendAnonymousMetrics: false,
		ShowNotifications:    true,
	}
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./downloads"
	}
	return filepath.Join(home, "Downloads")
}
