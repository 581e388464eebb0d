package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type actorStub struct {
	fields map[string]any
}

func (a actorStub) LogFields() map[string]any { return a.fields }

func TestLog_AttributesAndRedacts(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	actor := actorStub{fields: map[string]any{"userId": "u1", "organization": "o1", "role": "owner"}}
	Log(logger, LevelCritical, actor, "member removed", map[string]any{
		"memberId": "m1",
		"email":    "someone@example.com",
		"nested":   map[string]any{"token": "abc", "ok": true},
	})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, LevelCritical, entry.Data[SeverityField])
	assert.Equal(t, "u1", entry.Data["userId"])
	assert.Equal(t, "o1", entry.Data["organization"])
	assert.Equal(t, "owner", entry.Data["role"])
	assert.Equal(t, redacted, entry.Data["email"])
	nested, ok := entry.Data["nested"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, redacted, nested["token"])
	assert.Equal(t, true, nested["ok"])
}

func TestLog_PublicAndSystemActors(t *testing.T) {
	logger, hook := test.NewNullLogger()

	Log(logger, LevelInfo, nil, "anonymous", nil)
	assert.Equal(t, "public", hook.LastEntry().Data["identity"])

	Log(logger, LevelNotice, System, "boot", nil)
	assert.Equal(t, "system", hook.LastEntry().Data["identity"])
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}

func TestFormatIdentity(t *testing.T) {
	assert.Equal(t, "userId: u1 | org: o1 | role: admin",
		FormatIdentity(map[string]any{"userId": "u1", "organization": "o1", "role": "admin"}))
	assert.Equal(t, "identity: system", FormatIdentity(map[string]any{"identity": "system"}))
	assert.Equal(t, "unknown", FormatIdentity(nil))
}

func TestParseAdapterNames(t *testing.T) {
	assert.Equal(t, DefaultAdapters, ParseAdapterNames(""))
	assert.Equal(t, []string{"loki", "slack"}, ParseAdapterNames(" loki, ,slack"))
}

func TestBuildAdapters_SkipsUnknownAndUnconfigured(t *testing.T) {
	var warnings []string
	adapters, err := BuildAdapters(Options{
		Adapters:      []string{"prettyConsoleError", "carrier-pigeon", "slack", "prettyConsoleError"},
		ConsoleWriter: io.Discard,
	}, func(msg string) { warnings = append(warnings, msg) })
	require.NoError(t, err)
	require.Len(t, adapters, 1)
	assert.Equal(t, AdapterPrettyConsole, adapters[0].Name())
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "carrier-pigeon")
	assert.Contains(t, warnings[1], "slack")
}

func TestBuildAdapters_InvalidLokiLabels(t *testing.T) {
	_, err := BuildAdapters(Options{
		Adapters:   []string{"loki"},
		LokiURL:    "http://localhost:3100/loki/api/v1/push",
		LokiLabels: "{not json",
	}, func(string) {})
	require.Error(t, err)
}

type captured struct {
	mu     sync.Mutex
	bodies []map[string]any
}

func (c *captured) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		c.mu.Lock()
		c.bodies = append(c.bodies, body)
		c.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (c *captured) all() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]any(nil), c.bodies...)
}

func TestNew_WebhookAdaptersOnlyReceiveAlerts(t *testing.T) {
	slack := &captured{}
	discord := &captured{}
	slackSrv := httptest.NewServer(slack.handler(t))
	defer slackSrv.Close()
	discordSrv := httptest.NewServer(discord.handler(t))
	defer discordSrv.Close()

	logger, closeFn, err := New(Options{
		Level:             "debug",
		Adapters:          []string{"slack", "discord"},
		SlackWebhookURL:   slackSrv.URL,
		DiscordWebhookURL: discordSrv.URL,
		Output:            io.Discard,
	})
	require.NoError(t, err)

	actor := actorStub{fields: map[string]any{"userId": "u1"}}
	Log(logger, LevelInfo, actor, "not forwarded", nil)
	Log(logger, LevelError, actor, "forwarded", map[string]any{"password": "hunter2"})
	closeFn()

	slackBodies := slack.all()
	require.Len(t, slackBodies, 1)
	text, _ := slackBodies[0]["text"].(string)
	assert.True(t, strings.HasPrefix(text, "*[ERROR]* [userId: u1] forwarded"), text)
	assert.NotContains(t, text, "hunter2")

	discordBodies := discord.all()
	require.Len(t, discordBodies, 1)
	content, _ := discordBodies[0]["content"].(string)
	assert.True(t, strings.HasPrefix(content, "**[ERROR]**"), content)
}

func TestLokiAdapter_PushFormat(t *testing.T) {
	loki := &captured{}
	srv := httptest.NewServer(loki.handler(t))
	defer srv.Close()

	a, err := NewLokiAdapter(srv.URL, `{"job":"saaskit","env":"test"}`, srv.Client())
	require.NoError(t, err)
	assert.Equal(t, []string{"env", "job"}, a.LabelNames())

	ts := time.Unix(1700000000, 42)
	require.NoError(t, a.Send(Record{Level: LevelWarning, Message: "slow", Time: ts, Fields: map[string]any{"route": "/app"}}))

	bodies := loki.all()
	require.Len(t, bodies, 1)
	streams := bodies[0]["streams"].([]any)
	stream := streams[0].(map[string]any)
	assert.Equal(t, map[string]any{"job": "saaskit", "env": "test"}, stream["stream"])
	values := stream["values"].([]any)
	pair := values[0].([]any)
	assert.Equal(t, "1700000000000000042", pair[0])
	assert.Contains(t, pair[1], `"message":"slow"`)
}

type failingAdapter struct {
	mu    sync.Mutex
	calls int
	block chan struct{}
}

func (f *failingAdapter) Name() string       { return "failing" }
func (f *failingAdapter) Accepts(Level) bool { return true }
func (f *failingAdapter) Send(Record) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return errors.New("endpoint down")
}

func TestAsyncAdapter_NeverBlocksOrFails(t *testing.T) {
	inner := &failingAdapter{block: make(chan struct{})}
	a := NewAsyncAdapter(inner, 1)

	for i := 0; i < 10; i++ {
		require.NoError(t, a.Send(Record{Level: LevelError, Message: "x", Time: time.Now()}))
	}
	close(inner.block)
	require.NoError(t, a.Close())
	require.NoError(t, a.Send(Record{Level: LevelError}))

	inner.mu.Lock()
	defer inner.mu.Unlock()
	assert.LessOrEqual(t, inner.calls, 2)
	assert.GreaterOrEqual(t, inner.calls, 1)
}

func TestFileAdapter_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	a := NewFileAdapter(path)
	require.NoError(t, a.Send(Record{Level: LevelNotice, Message: "hello", Time: time.Now(), Fields: map[string]any{"identity": "system"}}))
	require.NoError(t, a.Close())

	raw := readFile(t, path)
	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(raw), &line))
	assert.Equal(t, "notice", line["level"])
	assert.Equal(t, "hello", line["message"])
}

func TestPrettyConsoleAdapter(t *testing.T) {
	var buf bytes.Buffer
	a := NewPrettyConsoleAdapter(&buf)
	require.NoError(t, a.Send(Record{
		Level:   LevelWarning,
		Message: "quota near limit",
		Time:    time.Now(),
		Fields:  map[string]any{"userId": "u1", "organization": "o1", "error": "boom", "used": 9},
	}))
	out := buf.String()
	assert.Contains(t, out, "[WARNING]")
	assert.Contains(t, out, "userId: u1 | org: o1")
	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, `"used": 9`)

	for _, lvl := range Levels {
		assert.True(t, a.Accepts(lvl), lvl)
	}
}
