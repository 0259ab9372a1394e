package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"drivesafe/internal/config"
)

// Message represents outbound alert.
type Message struct {
	Text string `json:"text"`
}

// GroupMe posts report alerts to a bot. A zero bot ID makes Send a no-op.
type GroupMe struct {
	botID  string
	url    string
	client *http.Client
}

func NewGroupMe(cfg config.Config, client *http.Client) *GroupMe {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GroupMe{botID: cfg.GroupMeBotID, url: cfg.GroupMeURL, client: client}
}

// Enabled reports whether a bot is configured.
func (g *GroupMe) Enabled() bool { return g != nil && g.botID != "" }

// Send posts msg to the configured bot.
func (g *GroupMe) Send(ctx context.Context, msg Message) error {
	if !g.Enabled() {
		return nil
	}
	payload := map[string]string{"text": msg.Text, "bot_id": g.botID}
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("groupme status %d", resp.StatusCode)
	}
	return nil
}
