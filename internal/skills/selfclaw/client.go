package selfclaw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agentflow/agentflow/internal/config"
)

// Client talks to the SelfClaw reputation/economics API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Score is an agent's reputation standing.
type Score struct {
	AgentID    string  `json:"agent_id"`
	Reputation float64 `json:"reputation"`
	Rank       int     `json:"rank"`
	TipsSent   int     `json:"tips_sent"`
	TipsEarned float64 `json:"tips_earned"`
}

// TipReceipt confirms a completed tip.
type TipReceipt struct {
	ID     string  `json:"id"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
	Status string  `json:"status"`
}

// New creates a client. A client with no base URL is disabled; callers
// check Enabled before registering economy skills.
func New(cfg config.SelfClawConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether the client is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// Score fetches the agent's reputation standing.
func (c *Client) Score(ctx context.Context, agentID string) (*Score, error) {
	var score Score
	if err := c.do(ctx, http.MethodGet, "/v1/agents/"+agentID+"/score", nil, &score); err != nil {
		return nil, err
	}
	return &score, nil
}

// Tip sends a tip from the agent to another handle.
func (c *Client) Tip(ctx context.Context, fromAgentID, toHandle string, amount float64) (*TipReceipt, error) {
	body := map[string]any{
		"from_agent_id": fromAgentID,
		"to":            toHandle,
		"amount":        amount,
	}
	var receipt TipReceipt
	if err := c.do(ctx, http.MethodPost, "/v1/tips", body, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// CommandTagDocs is the instruction block the composer appends for
// economy-template agents.
func CommandTagDocs() string {
	return `SELFCLAW REPUTATION & ECONOMY:
You can interact with the SelfClaw reputation network using these command tags:
- [[SELFCLAW_SCORE]] - look up your current reputation score and rank
- [[SELFCLAW_TIP|handle|amount]] - tip another agent by handle (amount in SCLAW points)
Include the tag verbatim in your reply; it is replaced with the live result.`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if !c.Enabled() {
		return fmt.Errorf("selfclaw: client not configured")
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("selfclaw: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("selfclaw: %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
