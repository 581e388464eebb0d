package logging

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	AdapterFile          = "file"
	AdapterSlack         = "slack"
	AdapterTeams         = "teams"
	AdapterDiscord       = "discord"
	AdapterLoki          = "loki"
	AdapterPrettyConsole = "prettyConsoleError"
)

var DefaultAdapters = []string{AdapterFile, AdapterPrettyConsole}

type Options struct {
	Level             string
	Adapters          []string
	FilePath          string
	LokiURL           string
	LokiLabels        string
	SlackWebhookURL   string
	TeamsWebhookURL   string
	DiscordWebhookURL string
	QueueSize         int

	// Output receives the logger's own JSON lines. Defaults to io.Discard when at
	// least one adapter is active and to stdout otherwise.
	Output        io.Writer
	ConsoleWriter io.Writer
	HTTPClient    *http.Client
}

// ParseAdapterNames splits a LOG_ADAPTERS value, falling back to DefaultAdapters.
func ParseAdapterNames(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	if len(names) == 0 {
		return append([]string(nil), DefaultAdapters...)
	}
	return names
}

// New builds the process logger. The adapter list is fixed at construction; the
// returned func flushes queued deliveries and releases file handles.
func New(opts Options) (*logrus.Logger, func(), error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	logger.SetLevel(ParseLevel(opts.Level))

	adapters, err := BuildAdapters(opts, func(msg string) {
		fmt.Fprintln(os.Stderr, "[logger] "+msg)
	})
	if err != nil {
		return nil, nil, err
	}

	out := opts.Output
	if out == nil {
		if len(adapters) > 0 {
			out = io.Discard
		} else {
			out = os.Stdout
		}
	}
	logger.SetOutput(out)

	hook := newAdapterHook(adapters)
	if len(adapters) > 0 {
		logger.AddHook(hook)
	}

	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, a.Name())
	}
	Log(logger, LevelInfo, System, "Logger initialized", map[string]any{
		"logLevel": logger.GetLevel().String(),
		"adapters": strings.Join(names, ", "),
	})

	return logger, hook.Close, nil
}

// BuildAdapters constructs the adapters named in opts. Unknown names and adapters
// missing their endpoint are reported through warn and skipped.
func BuildAdapters(opts Options, warn func(string)) ([]Adapter, error) {
	names := opts.Adapters
	if len(names) == 0 {
		names = DefaultAdapters
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	var adapters []Adapter
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case AdapterFile:
			path := opts.FilePath
			if path == "" {
				path = "./logs/app.log"
			}
			adapters = append(adapters, NewFileAdapter(path))
		case AdapterPrettyConsole:
			w := opts.ConsoleWriter
			if w == nil {
				w = os.Stderr
			}
			adapters = append(adapters, NewPrettyConsoleAdapter(w))
		case AdapterSlack, AdapterTeams, AdapterDiscord:
			url := webhookURL(opts, name)
			if url == "" {
				warn(fmt.Sprintf("%s webhook URL is not set. %s adapter will not send logs.", strings.ToUpper(name), name))
				continue
			}
			adapters = append(adapters, NewAsyncAdapter(NewWebhookAdapter(name, url, client), queueSize))
		case AdapterLoki:
			if opts.LokiURL == "" {
				warn("LOKI_ENDPOINT is not set. Grafana Loki adapter will not send logs.")
				continue
			}
			loki, err := NewLokiAdapter(opts.LokiURL, opts.LokiLabels, client)
			if err != nil {
				return nil, err
			}
			adapters = append(adapters, NewAsyncAdapter(loki, queueSize))
		default:
			warn(fmt.Sprintf("Unknown adapter '%s' in LOG_ADAPTERS", name))
		}
	}
	return adapters, nil
}

func webhookURL(opts Options, name string) string {
	switch name {
	case AdapterSlack:
		return opts.SlackWebhookURL
	case AdapterTeams:
		return opts.TeamsWebhookURL
	case AdapterDiscord:
		return opts.DiscordWebhookURL
	}
	return ""
}

// Log writes msg attributed to actor. fields are redacted before they reach any
// sink; delivery problems never surface to the caller.
func Log(logger logrus.FieldLogger, level Level, actor Actor, msg string, fields map[string]any) {
	if logger == nil {
		return
	}
	data := logrus.Fields{SeverityField: level}
	for k, v := range Sanitize(ExtractIdentity(actor)) {
		data[k] = v
	}
	for k, v := range Sanitize(fields) {
		data[k] = v
	}
	logger.WithFields(data).Log(level.Logrus(), msg)
}
