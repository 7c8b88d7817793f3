package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"plantcode-go/errcode"
	"plantcode-go/types"
)

type staticConfig struct{ cfg types.Config }

func (s staticConfig) Get() types.Config { return s.cfg }

type stubSensors struct{}

func (stubSensors) ReadSoilHumidity() (float32, error)   { return 2100, nil }
func (stubSensors) ReadBatteryVoltage() (float32, error) { return 3.84, nil }

func configFor(url string) staticConfig {
	cfg := types.DefaultConfig()
	cfg.LLM.BaseURL = url
	cfg.LLM.APIKey = "sk-test"
	return staticConfig{cfg}
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func TestChatWithOptions_RequestShapeAndStructuredReply(t *testing.T) {
	reqs := make(chan chatRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Check(t, is.Equal(r.URL.Path, "/v1/chat/completions"))
		assert.Check(t, is.Equal(r.Header.Get("Authorization"), "Bearer sk-test"))
		var req chatRequest
		assert.Check(t, json.NewDecoder(r.Body).Decode(&req))
		reqs <- req
		w.Write([]byte(completion(`{"reply":"I'm thirsty!","options":["Water me","Later","Why?","Extra"]}`)))
	}))
	defer srv.Close()

	c := New(configFor(srv.URL+"/v1"), Options{Sensors: stubSensors{}})
	reply, opts, err := c.ChatWithOptions(context.Background(), "How are you?")
	assert.NilError(t, err)
	assert.Equal(t, reply, "I'm thirsty!")
	assert.DeepEqual(t, opts, []string{"Water me", "Later", "Why?"})

	got := <-reqs
	assert.Equal(t, got.Model, "gpt-3.5-turbo")
	assert.Equal(t, got.MaxTokens, MaxTokens)
	assert.Equal(t, got.Temperature, Temperature)
	assert.Equal(t, len(got.Messages), 3)
	assert.Equal(t, got.Messages[0].Role, "system")
	assert.Check(t, is.Contains(got.Messages[1].Content, "2100"))
	assert.Check(t, is.Contains(got.Messages[1].Content, "3.84V"))
	assert.DeepEqual(t, got.Messages[2], message{Role: "user", Content: "How are you?"})
}

func TestChatWithOptions_PlainTextFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completion("  Just a bit dry today.  ")))
	}))
	defer srv.Close()

	c := New(configFor(srv.URL+"/"), Options{})
	reply, opts, err := c.ChatWithOptions(context.Background(), "hi")
	assert.NilError(t, err)
	assert.Equal(t, reply, "Just a bit dry today.")
	assert.DeepEqual(t, opts, DefaultOptions)
}

func TestChatWithOptions_HistoryIsReplayed(t *testing.T) {
	var lastLen atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		lastLen.Store(int32(len(req.Messages)))
		w.Write([]byte(completion(`{"reply":"ok","options":[]}`)))
	}))
	defer srv.Close()

	c := New(configFor(srv.URL), Options{})
	for i := 0; i < 7; i++ {
		_, _, err := c.ChatWithOptions(context.Background(), "again")
		assert.NilError(t, err)
	}
	assert.Equal(t, c.History().Len(), MaxTurns)
	// system + context + 5 turns * 2 + question
	assert.Equal(t, int(lastLen.Load()), 2+MaxTurns*2+1)
}

func TestChatWithOptions_Errors(t *testing.T) {
	c := New(staticConfig{types.DefaultConfig()}, Options{})
	_, _, err := c.ChatWithOptions(context.Background(), "hi")
	assert.Equal(t, errcode.Of(err), errcode.AssistantNotConfigured)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()
	c = New(configFor(srv.URL), Options{})
	_, _, err = c.ChatWithOptions(context.Background(), "hi")
	assert.Equal(t, errcode.Of(err), errcode.AssistantFailed)
	assert.ErrorContains(t, err, "HTTP error: 500")
	assert.Equal(t, c.History().Len(), 0)
}

func TestChatWithOptions_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(configFor(srv.URL), Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err := c.ChatWithOptions(ctx, "hi")
	assert.Equal(t, errcode.Of(err), errcode.Timeout)
}

func TestParseReply_CodeFence(t *testing.T) {
	reply, opts := parseReply("```json\n{\"reply\":\"Hello\",\"options\":[\" a \",\"\"]}\n```")
	assert.Equal(t, reply, "Hello")
	assert.DeepEqual(t, opts, []string{"a"})
}

func TestHistory_KeepsNewestAndRoundTrips(t *testing.T) {
	h := NewHistory(2)
	h.Add(Turn{User: "1"})
	h.Add(Turn{User: "2"})
	h.Add(Turn{User: "3", Options: []string{"x"}})
	turns := h.Turns()
	assert.Equal(t, len(turns), 2)
	assert.Equal(t, turns[0].User, "2")

	b, err := h.Marshal()
	assert.NilError(t, err)
	other := NewHistory(2)
	assert.NilError(t, other.Unmarshal(b))
	assert.DeepEqual(t, other.Turns(), turns)

	h.Clear()
	assert.Equal(t, h.Len(), 0)
}
