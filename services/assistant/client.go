// Package assistant talks to an OpenAI-compatible chat completion endpoint
// on behalf of the plant.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"plantcode-go/errcode"
	"plantcode-go/types"
	"plantcode-go/x/strx"
)

const (
	MaxTokens      = 150
	Temperature    = 0.7
	DefaultTimeout = 30 * time.Second
	MaxOptions     = 3
)

const systemPrompt = "You are the voice of a potted plant in a smart plant-monitoring system. " +
	"You can sense soil humidity and the battery level and talk to your owner about them. " +
	"Answer briefly and kindly, as the plant itself, in under 50 words. " +
	`Respond with JSON only: {"reply": "<your answer>", "options": ["<follow-up>", ...]} ` +
	"with at most 3 short follow-up questions the owner could ask next."

// DefaultOptions are offered when a reply carries none of its own.
var DefaultOptions = []string{"Tell me more", "How do you feel?", "Goodbye"}

type ConfigSource interface {
	Get() types.Config
}

type Sensors interface {
	ReadSoilHumidity() (float32, error)
	ReadBatteryVoltage() (float32, error)
}

type Options struct {
	Sensors    Sensors
	TimeSynced func() bool
	History    *History
	HTTPClient *http.Client
	Clock      clockwork.Clock
	Logger     *slog.Logger
}

type Client struct {
	cfg  ConfigSource
	opt  Options
	hist *History
	log  *slog.Logger
}

func New(cfg ConfigSource, opt Options) *Client {
	if opt.HTTPClient == nil {
		opt.HTTPClient = &http.Client{}
	}
	if opt.Clock == nil {
		opt.Clock = clockwork.NewRealClock()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.History == nil {
		opt.History = NewHistory(MaxTurns)
	}
	return &Client{cfg: cfg, opt: opt, hist: opt.History, log: opt.Logger.With("svc", "assistant")}
}

func (c *Client) History() *History { return c.hist }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// structured is the reply shape the system prompt asks for.
type structured struct {
	Reply   string   `json:"reply"`
	Options []string `json:"options"`
}

// Chat returns the reply text only.
func (c *Client) Chat(ctx context.Context, text string) (string, error) {
	reply, _, err := c.ChatWithOptions(ctx, text)
	return reply, err
}

// ChatWithOptions asks one question and records the turn in the history.
// Replies that are not the requested JSON are used verbatim with
// DefaultOptions.
func (c *Client) ChatWithOptions(ctx context.Context, text string) (string, []string, error) {
	cfg := c.cfg.Get()
	if !cfg.LLM.Configured() {
		return "", nil, &errcode.E{C: errcode.AssistantNotConfigured, Op: "assistant.chat", Msg: "assistant not configured"}
	}

	timeout := time.Duration(cfg.LLM.TimeoutS) * time.Second
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	content, err := c.complete(ctx, cfg, c.buildMessages(cfg, text))
	if err != nil {
		c.log.Error("chat request failed", "err", err)
		return "", nil, err
	}

	reply, opts := parseReply(content)
	c.hist.Add(Turn{User: text, Reply: reply, Options: opts, TS: c.opt.Clock.Now().Unix()})
	c.log.Info("chat reply", "reply", strx.Truncate(reply, 60), "options", len(opts))
	return reply, opts, nil
}

func (c *Client) buildMessages(cfg types.Config, text string) []message {
	msgs := []message{
		{Role: "system", Content: systemPrompt},
		{Role: "system", Content: c.sensorContext(cfg)},
	}
	for _, t := range c.hist.Turns() {
		msgs = append(msgs,
			message{Role: "user", Content: t.User},
			message{Role: "assistant", Content: t.Reply},
		)
	}
	return append(msgs, message{Role: "user", Content: text})
}

func (c *Client) sensorContext(cfg types.Config) string {
	hum, bat := "unknown", "unknown"
	if c.opt.Sensors != nil {
		if v, err := c.opt.Sensors.ReadSoilHumidity(); err == nil {
			hum = fmt.Sprintf("%.0f", v)
		}
		if v, err := c.opt.Sensors.ReadBatteryVoltage(); err == nil {
			bat = fmt.Sprintf("%.2fV", v)
		}
	}
	synced := "not synced"
	if c.opt.TimeSynced != nil && c.opt.TimeSynced() {
		synced = "synced"
	}
	return fmt.Sprintf("Plant: %s. Current sensor data - soil humidity ADC: %s (dry above %d), battery: %s, time: %s",
		strx.Coalesce(cfg.Watering.PlantType, "unnamed plant"), hum, cfg.Watering.Threshold, bat, synced)
}

func endpoint(base string) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + "chat/completions"
}

func (c *Client) complete(ctx context.Context, cfg types.Config, msgs []message) (string, error) {
	const op = "assistant.chat"
	body, err := json.Marshal(chatRequest{
		Model:       cfg.LLM.Model,
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
		Messages:    msgs,
	})
	if err != nil {
		return "", errcode.Wrap(errcode.AssistantFailed, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(cfg.LLM.BaseURL), bytes.NewReader(body))
	if err != nil {
		return "", errcode.Wrap(errcode.AssistantFailed, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.LLM.APIKey)

	resp, err := c.opt.HTTPClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &errcode.E{C: errcode.Timeout, Op: op, Msg: "assistant timed out", Err: err}
		}
		return "", &errcode.E{C: errcode.AssistantFailed, Op: op, Msg: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", &errcode.E{C: errcode.AssistantFailed, Op: op, Msg: fmt.Sprintf("HTTP error: %d", resp.StatusCode)}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", &errcode.E{C: errcode.AssistantFailed, Op: op, Msg: "malformed response", Err: err}
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == "" {
		return "", &errcode.E{C: errcode.AssistantFailed, Op: op, Msg: "no content in response"}
	}
	return cr.Choices[0].Message.Content, nil
}

// parseReply accepts the structured JSON reply, optionally inside a code
// fence, and falls back to plain text.
func parseReply(content string) (string, []string) {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var st structured
	if err := json.Unmarshal([]byte(s), &st); err != nil || strings.TrimSpace(st.Reply) == "" {
		return strings.TrimSpace(content), append([]string(nil), DefaultOptions...)
	}
	opts := make([]string, 0, MaxOptions)
	for _, o := range st.Options {
		if o = strings.TrimSpace(o); o != "" && len(opts) < MaxOptions {
			opts = append(opts, o)
		}
	}
	if len(opts) == 0 {
		opts = append(opts, DefaultOptions...)
	}
	return strings.TrimSpace(st.Reply), opts
}
