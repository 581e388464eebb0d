package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileAdapter appends JSON lines to a size-rotated file.
type FileAdapter struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

func NewFileAdapter(path string) *FileAdapter {
	return &FileAdapter{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		},
	}
}

func (a *FileAdapter) Name() string { return AdapterFile }

func (a *FileAdapter) Accepts(Level) bool { return true }

func (a *FileAdapter) Send(rec Record) error {
	line, err := json.Marshal(rec.Flatten())
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err = a.out.Write(append(line, '\n'))
	return err
}

func (a *FileAdapter) Close() error {
	return a.out.Close()
}

const (
	ansiReset   = "\x1b[0m"
	ansiBold    = "\x1b[1m"
	ansiDim     = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
	ansiGray    = "\x1b[90m"
	ansiBrightR = "\x1b[91m"
	ansiBrightY = "\x1b[93m"
)

const indent = "  "

// PrettyConsoleAdapter prints colored, human-oriented lines for local development.
type PrettyConsoleAdapter struct {
	mu  sync.Mutex
	out io.Writer
}

func NewPrettyConsoleAdapter(w io.Writer) *PrettyConsoleAdapter {
	return &PrettyConsoleAdapter{out: w}
}

func (a *PrettyConsoleAdapter) Name() string { return AdapterPrettyConsole }

func (a *PrettyConsoleAdapter) Accepts(Level) bool { return true }

func colorFor(level Level) string {
	switch level {
	case LevelDebug:
		return ansiGray
	case LevelInfo:
		return ansiBlue
	case LevelNotice:
		return ansiCyan
	case LevelWarning:
		return ansiYellow
	case LevelCritical:
		return ansiMagenta
	case LevelEmergency:
		return ansiBrightY
	default:
		return ansiRed
	}
}

func (a *PrettyConsoleAdapter) Send(rec Record) error {
	color := colorFor(rec.Level)
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s[%s]%s %s%s%s\n", ansiBold, color, strings.ToUpper(string(rec.Level)), ansiReset, color, rec.Message, ansiReset)

	meta := []string{}
	if v, ok := rec.Fields["identity"]; ok {
		meta = append(meta, fmt.Sprintf("identity: %v", v))
	} else {
		meta = append(meta, "identity: User")
	}
	for _, key := range []string{"userId", "organization", "role"} {
		if v, ok := rec.Fields[key]; ok {
			label := key
			if key == "organization" {
				label = "org"
			}
			meta = append(meta, fmt.Sprintf("%s: %v", label, v))
		}
	}
	fmt.Fprintf(&b, "%s%s%s%s\n", indent, ansiDim, strings.Join(meta, " | "), ansiReset)
	fmt.Fprintf(&b, "%s%s%s%s\n", indent, ansiDim, rec.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00"), ansiReset)

	rest := make(map[string]any)
	for k, v := range rec.Fields {
		switch k {
		case "identity", "userId", "organization", "role":
			continue
		case "error":
			fmt.Fprintf(&b, "%s%sError:%s %s%v%s\n", indent, ansiBrightR, ansiReset, ansiBrightR, v, ansiReset)
			continue
		case "stack":
			fmt.Fprintf(&b, "%s%sStack:%s\n%s%s%v%s\n", indent, ansiBrightR, ansiReset, indent, ansiBrightR, v, ansiReset)
			continue
		}
		rest[k] = v
	}
	if len(rest) > 0 {
		fmt.Fprintf(&b, "%s%sContext:%s\n", indent, ansiDim, ansiReset)
		ctx, err := json.MarshalIndent(rest, "", "  ")
		if err != nil {
			return err
		}
		for _, line := range strings.Split(string(ctx), "\n") {
			fmt.Fprintf(&b, "%s%s%s%s\n", indent, ansiDim, line, ansiReset)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := io.WriteString(a.out, b.String())
	return err
}

// WebhookAdapter posts alert-level records to a Slack, Teams or Discord
// incoming webhook.
type WebhookAdapter struct {
	name   string
	url    string
	client *http.Client
}

func NewWebhookAdapter(name, url string, client *http.Client) *WebhookAdapter {
	return &WebhookAdapter{name: name, url: url, client: client}
}

func (a *WebhookAdapter) Name() string { return a.name }

func (a *WebhookAdapter) Accepts(level Level) bool {
	for _, l := range alertLevels {
		if l == level {
			return true
		}
	}
	return false
}

func (a *WebhookAdapter) Send(rec Record) error {
	flat := rec.Flatten()
	detail, err := json.MarshalIndent(flat, "", "  ")
	if err != nil {
		return err
	}
	emphasis := "**"
	if a.name == AdapterSlack {
		emphasis = "*"
	}
	text := fmt.Sprintf("%s[%s]%s [%s] %s\n%s\n%s",
		emphasis, strings.ToUpper(string(rec.Level)), emphasis,
		FormatIdentity(rec.Fields), rec.Message, flat["timestamp"], detail)

	key := "text"
	if a.name == AdapterDiscord {
		key = "content"
	}
	return postJSON(a.client, a.url, map[string]string{key: text})
}

// LokiAdapter pushes every record to the Grafana Loki push API.
type LokiAdapter struct {
	url    string
	labels map[string]string
	client *http.Client
}

func NewLokiAdapter(url, labels string, client *http.Client) (*LokiAdapter, error) {
	parsed := map[string]string{"job": "app"}
	if strings.TrimSpace(labels) != "" {
		parsed = map[string]string{}
		if err := json.Unmarshal([]byte(labels), &parsed); err != nil {
			return nil, fmt.Errorf("logging: invalid LOKI_LABELS: %w", err)
		}
	}
	return &LokiAdapter{url: url, labels: parsed, client: client}, nil
}

func (a *LokiAdapter) Name() string { return AdapterLoki }

func (a *LokiAdapter) Accepts(Level) bool { return true }

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

func (a *LokiAdapter) Send(rec Record) error {
	line, err := json.Marshal(rec.Flatten())
	if err != nil {
		return err
	}
	payload := map[string][]lokiStream{
		"streams": {{
			Stream: a.labels,
			Values: [][2]string{{strconv.FormatInt(rec.Time.UnixNano(), 10), string(line)}},
		}},
	}
	return postJSON(a.client, a.url, payload)
}

// LabelNames lists the configured stream labels in a stable order.
func (a *LokiAdapter) LabelNames() []string {
	names := make([]string, 0, len(a.labels))
	for k := range a.labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func postJSON(client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("logging: %s responded %d", url, resp.StatusCode)
	}
	return nil
}
