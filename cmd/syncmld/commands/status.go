package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/syncmld/internal/bytesize"
	"github.com/marmos91/syncmld/internal/cli/health"
	"github.com/marmos91/syncmld/internal/cli/output"
	"github.com/marmos91/syncmld/internal/cli/timeutil"
	"github.com/marmos91/syncmld/internal/config"
	"github.com/marmos91/syncmld/internal/dsync/model"
)

var (
	statusOutput string
	statusLive   bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the configured session and its datastore bindings",
	Long: `Display the role, protocol version, transport endpoint, and
datastore bindings a config file would start a session with, without
running the session. Useful to sanity-check a config file before
running "syncmld start" against it.

With --live, also calls the /health endpoint of a running server-role
session to report whether it is up and how long it has been running.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "output format (table|json|yaml)")
	statusCmd.Flags().BoolVar(&statusLive, "live", false, "also probe the /health endpoint of a running server")
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	var live *health.Response
	if statusLive {
		live = probeHealth(cfg)
	}

	switch format {
	case output.FormatJSON:
		if live != nil {
			return output.PrintJSON(os.Stdout, struct {
				Session config.SessionConfig `json:"session"`
				Health  *health.Response      `json:"health"`
			}{cfg.Session, live})
		}
		return output.PrintJSON(os.Stdout, cfg.Session)
	case output.FormatYAML:
		if live != nil {
			return output.PrintYAML(os.Stdout, struct {
				Session config.SessionConfig `yaml:"session"`
				Health  *health.Response      `yaml:"health"`
			}{cfg.Session, live})
		}
		return output.PrintYAML(os.Stdout, cfg.Session)
	default:
		printStatusTable(cfg)
		if statusLive {
			printLiveHealth(live)
		}
	}
	return nil
}

// probeHealth calls a running server's /health endpoint. Only meaningful
// for a server-role config; a client has nothing listening to probe.
func probeHealth(cfg *config.Config) *health.Response {
	if cfg.Session.ParsedRole() != model.RoleServer {
		return nil
	}

	healthURL := healthEndpoint(cfg.Transport.ListenAddress)
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(healthURL)
	if err != nil {
		return &health.Response{Status: "unreachable", Error: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	var out health.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &health.Response{Status: "unreachable", Error: "invalid health response: " + err.Error()}
	}
	return &out
}

func healthEndpoint(listenAddress string) string {
	addr := listenAddress
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/health"
}

func printLiveHealth(resp *health.Response) {
	fmt.Println()
	fmt.Println("  Live health check")
	fmt.Println("  -----------------")
	if resp == nil {
		fmt.Println("  (skipped: only meaningful for session.role: server)")
		return
	}
	switch resp.Status {
	case "healthy":
		fmt.Printf("  Status:   \033[32m● healthy\033[0m\n")
		fmt.Printf("  Started:  %s\n", timeutil.FormatTime(resp.Data.StartedAt))
		fmt.Printf("  Uptime:   %s\n", timeutil.FormatUptime(resp.Data.Uptime))
	case "unreachable":
		fmt.Printf("  Status:   \033[31m○ unreachable\033[0m (%s)\n", resp.Error)
	default:
		fmt.Printf("  Status:   \033[33m● %s\033[0m (%s)\n", resp.Status, resp.Error)
	}
}

func printStatusTable(cfg *config.Config) {
	fmt.Println("syncmld session configuration")
	fmt.Println("==============================")
	fmt.Printf("  Role:                %s\n", cfg.Session.Role)
	fmt.Printf("  Protocol version:    %s\n", cfg.Session.ProtocolVersion)
	fmt.Printf("  Local URI:           %s\n", cfg.Session.LocalURI)
	fmt.Printf("  Remote device:       %s\n", cfg.Session.RemoteDevice)
	fmt.Printf("  Auth type:           %s\n", cfg.Session.AuthType)
	fmt.Printf("  Conflict policy:     %s\n", cfg.Session.ConflictResolutionPolicy)
	if cfg.Session.Role == "client" {
		fmt.Printf("  Remote URL:          %s\n", cfg.Transport.RemoteURL)
	} else {
		fmt.Printf("  Listen address:      %s\n", cfg.Transport.ListenAddress)
	}
	fmt.Printf("  Max message size:    %s\n", bytesize.ByteSize(cfg.Transport.MaxMessageSize))
	fmt.Printf("  Large object cutoff: %s\n", bytesize.ByteSize(cfg.Session.LargeObjectThreshold))
	fmt.Println()

	table := output.NewTableData("Source URI", "Target URI")
	for _, tc := range cfg.Session.Targets {
		table.AddRow(tc.SourceURI, tc.TargetURI)
	}
	_ = output.PrintTable(os.Stdout, table)

	if cfg.Metrics.Enabled {
		fmt.Println()
		fmt.Println("  Metrics:             enabled on port " + strconv.Itoa(cfg.Metrics.Port))
	}
}
