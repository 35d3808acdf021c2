package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/Dev-PGVAA/tg-group-bot/internal/supervisor"
)

var styles = struct {
	Header  lipgloss.Style
	Name    lipgloss.Style
	Running lipgloss.Style
	Stopped lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}{
	Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
	Name:    lipgloss.NewStyle().Bold(true),
	Running: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	Stopped: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	Muted:   lipgloss.NewStyle().Faint(true),
}

// ctlClient talks to a running supervisor's dashboard API.
type ctlClient struct {
	base string
	http *http.Client
}

func newCtlClient(base string) *ctlClient {
	return &ctlClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("dashboard returned %d: %s", e.Status, e.Message)
}

// do sends a request and decodes the JSON reply into out. Replies of 400
// and above become *apiError, but out is still decoded when possible.
func (c *ctlClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reach dashboard at %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil && resp.StatusCode < 400 {
			return fmt.Errorf("decode %s reply: %w", path, err)
		}
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &e)
		msg := e.Error
		if msg == "" {
			msg = e.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &apiError{Status: resp.StatusCode, Message: msg}
	}
	return nil
}

func (c *ctlClient) Bots(ctx context.Context) ([]supervisor.BotStatus, error) {
	var bots []supervisor.BotStatus
	err := c.do(ctx, http.MethodGet, "/api/bots", nil, &bots)
	return bots, err
}

func (c *ctlClient) Control(ctx context.Context, action, name string) (supervisor.Result, error) {
	var res supervisor.Result
	err := c.do(ctx, http.MethodPost, "/api/bots/"+url.PathEscape(action), url.Values{"name": {name}}, &res)
	return res, err
}

func (c *ctlClient) Tail(ctx context.Context, name string, n int) ([]string, error) {
	var reply struct {
		Lines []string `json:"lines"`
	}
	path := "/api/bots/" + url.PathEscape(name) + "/tail?lines=" + strconv.Itoa(n)
	err := c.do(ctx, http.MethodGet, path, nil, &reply)
	return reply.Lines, err
}

func (c *ctlClient) TriggerReport(ctx context.Context) (string, error) {
	var reply struct {
		Request string `json:"request"`
	}
	err := c.do(ctx, http.MethodPost, "/api/reports/trigger", url.Values{}, &reply)
	return reply.Request, err
}

// renderStatus formats the bot list as an aligned table.
func renderStatus(bots []supervisor.BotStatus) string {
	if len(bots) == 0 {
		return styles.Muted.Render("no bots configured")
	}
	width := len("NAME")
	for _, b := range bots {
		width = max(width, len(b.Name))
	}

	var sb strings.Builder
	sb.WriteString(styles.Header.Render(fmt.Sprintf("%-*s  %-8s  %-7s  %s", width, "NAME", "STATE", "PID", "LOG")))
	sb.WriteString("\n")
	for _, b := range bots {
		state := b.State.String()
		stateStyle := styles.Stopped
		switch {
		case b.Active:
			stateStyle = styles.Running
		case b.LastError != "":
			stateStyle = styles.Error
		}
		pid := "-"
		if b.PID != 0 {
			pid = strconv.Itoa(b.PID)
		}
		sb.WriteString(styles.Name.Render(fmt.Sprintf("%-*s", width, b.Name)))
		sb.WriteString("  ")
		sb.WriteString(stateStyle.Render(fmt.Sprintf("%-8s", state)))
		sb.WriteString(fmt.Sprintf("  %-7s  %s", pid, b.LogFile))
		if b.LastError != "" {
			sb.WriteString("  " + styles.Error.Render(b.LastError))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func newCtlCmd(a *app) *cobra.Command {
	var baseURL string
	var client *ctlClient

	cmd := &cobra.Command{
		Use:   "ctl",
		Short: "Control a running supervisor through its dashboard",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if baseURL == "" {
				if err := a.load(); err != nil {
					return err
				}
				baseURL = a.cfg.Dashboard.URL
			}
			client = newCtlClient(baseURL)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&baseURL, "url", "", "dashboard URL (defaults to dashboard.url from the config)")

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the managed bots",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			bots, err := client.Bots(c.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), renderStatus(bots))
			return nil
		},
	})

	for _, action := range []string{supervisor.ActionStart, supervisor.ActionStop, supervisor.ActionRestart} {
		cmd.AddCommand(&cobra.Command{
			Use:   action + " <name>",
			Short: strings.ToUpper(action[:1]) + action[1:] + " a managed bot",
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				res, err := client.Control(c.Context(), action, args[0])
				if res.Message != "" {
					style := styles.Running
					if res.Status != "ok" {
						style = styles.Error
					}
					fmt.Fprintln(c.OutOrStdout(), style.Render(res.Message))
				}
				for _, line := range res.Tail {
					fmt.Fprintln(c.OutOrStdout(), styles.Muted.Render(line))
				}
				return err
			},
		})
	}

	var lines int
	logsCmd := &cobra.Command{
		Use:   "logs <name>",
		Short: "Print the last lines of a bot's log",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			tail, err := client.Tail(c.Context(), args[0], lines)
			if err != nil {
				return err
			}
			for _, line := range tail {
				fmt.Fprintln(c.OutOrStdout(), line)
			}
			return nil
		},
	}
	logsCmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines")
	cmd.AddCommand(logsCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "report",
		Short: "Ask the records bot to post the table now",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			req, err := client.TriggerReport(c.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), styles.Running.Render("report requested: " + req))
			return nil
		},
	})
	return cmd
}
