// Package main is the entry point for the advisor CLI.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"
	// BuildTime is set at build time.
	BuildTime = "unknown"
)

// client talks to accidentd over a plain TCP base URL, replacing the
// teacher CLI's Unix-socket transport since the daemon now serves on
// a network-reachable listener.
type client struct {
	httpClient *http.Client
	baseURL    string
}

func newClient(addr string) *client {
	return &client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    "http://" + addr,
	}
}

func (c *client) get(path string) ([]byte, error) {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *client) post(path string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}
	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", reqBody)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

var daemonAddr string

func main() {
	rootCmd := &cobra.Command{
		Use:     "accidentctl",
		Short:   "Traffic accident advisor CLI",
		Long:    `accidentctl talks to a running accidentd over HTTP to drive turns, inspect session state, and trigger index rebuilds.`,
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
	}

	rootCmd.PersistentFlags().StringVar(&daemonAddr, "addr", "localhost:8080", "accidentd listen address")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(clearCmd())
	rootCmd.AddCommand(analyticsCmd())
	rootCmd.AddCommand(rebuildCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(healthCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func printJSON(raw []byte) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(pretty.String())
}

// askCmd sends one turn to the orchestrator.
func askCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Send a query as one conversational turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(daemonAddr)
			raw, err := c.post("/api/v1/turn", map[string]string{
				"session_id": sessionID,
				"query":      args[0],
			})
			if err != nil {
				return err
			}
			printJSON(raw)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "default", "session id to use for this turn")
	return cmd
}

func newChatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "new-chat",
		Short: "Clear a session's rolling conversational memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(daemonAddr)
			raw, err := c.post("/api/v1/new-chat", map[string]string{"session_id": sessionID})
			if err != nil {
				return err
			}
			printJSON(raw)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "default", "session id to reset")
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <session-id>",
		Short: "Show a session's persisted message log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(daemonAddr)
			raw, err := c.get("/api/v1/session/" + args[0] + "/history")
			if err != nil {
				return err
			}
			printJSON(raw)
			return nil
		},
	}
	return cmd
}

func clearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Clear a session's rolling conversational memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(daemonAddr)
			raw, err := c.post("/api/v1/session/"+args[0]+"/clear", nil)
			if err != nil {
				return err
			}
			printJSON(raw)
			return nil
		},
	}
	return cmd
}

func analyticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics <session-id>",
		Short: "Show per-session stats plus process-wide retrieval counters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(daemonAddr)
			raw, err := c.get("/api/v1/session/" + args[0] + "/analytics")
			if err != nil {
				return err
			}
			printJSON(raw)
			return nil
		},
	}
	return cmd
}

func rebuildCmd() *cobra.Command {
	var category string
	var force bool

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild a category's collection (or every category) from its source file",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(daemonAddr)
			path := "/api/v1/kb/rebuild?category=" + category
			if force {
				path += "&force=true"
			}
			raw, err := c.post(path, nil)
			if err != nil {
				return err
			}
			printJSON(raw)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "category to rebuild (empty rebuilds every category)")
	cmd.Flags().BoolVar(&force, "force", false, "rebuild even if the collection is already populated")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and process-wide status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(daemonAddr)
			raw, err := c.get("/api/v1/status")
			if err != nil {
				return err
			}
			printJSON(raw)
			return nil
		},
	}
	return cmd
}

func healthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check daemon health",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(daemonAddr)
			raw, err := c.get("/api/v1/health")
			if err != nil {
				return err
			}
			printJSON(raw)
			return nil
		},
	}
	return cmd
}
