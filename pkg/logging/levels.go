package logging

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Level is an application severity. logrus has no notice, critical or emergency
// levels, so they are folded onto the nearest logrus level and the original name is
// kept in the SeverityField.
type Level string

const (
	LevelDebug     Level = "debug"
	LevelInfo      Level = "info"
	LevelNotice    Level = "notice"
	LevelWarning   Level = "warning"
	LevelError     Level = "error"
	LevelCritical  Level = "critical"
	LevelEmergency Level = "emergency"
)

const SeverityField = "severity"

var Levels = []Level{
	LevelDebug,
	LevelInfo,
	LevelNotice,
	LevelWarning,
	LevelError,
	LevelCritical,
	LevelEmergency,
}

// alertLevels are forwarded to chat webhooks.
var alertLevels = []Level{LevelError, LevelCritical, LevelEmergency}

func (l Level) Logrus() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelInfo, LevelNotice:
		return logrus.InfoLevel
	case LevelWarning:
		return logrus.WarnLevel
	case LevelError, LevelCritical, LevelEmergency:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Rank orders levels from least to most severe.
func (l Level) Rank() int {
	for i, lvl := range Levels {
		if lvl == l {
			return i
		}
	}
	return 1
}

// levelOf recovers the application level of an entry, preferring the severity field.
func levelOf(entry *logrus.Entry) Level {
	if v, ok := entry.Data[SeverityField].(Level); ok {
		return v
	}
	if v, ok := entry.Data[SeverityField].(string); ok {
		return Level(v)
	}
	switch entry.Level {
	case logrus.TraceLevel, logrus.DebugLevel:
		return LevelDebug
	case logrus.InfoLevel:
		return LevelInfo
	case logrus.WarnLevel:
		return LevelWarning
	case logrus.ErrorLevel:
		return LevelError
	case logrus.FatalLevel:
		return LevelCritical
	default:
		return LevelEmergency
	}
}

// ParseLevel accepts both logrus names and the application level names.
func ParseLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent":
		return logrus.PanicLevel
	case "debug":
		return logrus.DebugLevel
	case "info", "notice":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error", "critical", "emergency":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
