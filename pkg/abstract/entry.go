package abstract

import (
	"strconv"
	"strings"
	"time"

	"go.ytsaurus.tech/library/go/core/xerrors"
)

// Severity follows the syslog ordering: lower code is more severe.
type Severity int

const (
	SeverityEmergency Severity = iota
	SeverityAction
	SeverityCritical
	SeverityError
	SeverityWarning
	SeverityNotice
	SeverityInformation
	SeverityDebug
)

var severityNames = [...]string{
	"Emergency",
	"Action",
	"Critical",
	"Error",
	"Warning",
	"Notice",
	"Information",
	"Debug",
}

func (s Severity) String() string {
	if s < SeverityEmergency || s > SeverityDebug {
		return "Severity(" + strconv.Itoa(int(s)) + ")"
	}
	return severityNames[s]
}

func (s Severity) Code() int {
	return int(s)
}

// ParseSeverity accepts a severity name (case insensitive, common aliases too) or its numeric code.
// An empty string means Information.
func ParseSeverity(raw string) (Severity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SeverityInformation, nil
	}
	if code, err := strconv.Atoi(raw); err == nil {
		if code < int(SeverityEmergency) || code > int(SeverityDebug) {
			return 0, xerrors.Errorf("severity code %d out of range", code)
		}
		return Severity(code), nil
	}
	switch strings.ToLower(raw) {
	case "emergency", "emerg", "fatal":
		return SeverityEmergency, nil
	case "action", "alert":
		return SeverityAction, nil
	case "critical", "crit":
		return SeverityCritical, nil
	case "error", "err":
		return SeverityError, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "notice":
		return SeverityNotice, nil
	case "information", "info":
		return SeverityInformation, nil
	case "debug", "trace":
		return SeverityDebug, nil
	}
	return 0, xerrors.Errorf("unknown severity %q", raw)
}

// Message header names carrying entry metadata.
const (
	HeaderTimestamp = "Chililog-Timestamp"
	HeaderSource    = "Chililog-Source"
	HeaderHost      = "Chililog-Host"
	HeaderSeverity  = "Chililog-Severity"
)

// EntryMetadata is the publish-time metadata of a raw log line, as received from the queue.
type EntryMetadata struct {
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	Host      string `json:"host"`
	Severity  string `json:"severity"`
}

// Field is one typed attribute extracted from the message body.
type Field struct {
	Name  string
	Type  DataType
	Value any
}

// RepositoryEntry is one parsed log record. It is never modified after the parser returns it.
type RepositoryEntry struct {
	ID             string
	Timestamp      time.Time
	SavedTimestamp time.Time
	Source         string
	Host           string
	Severity       Severity
	Message        string
	Keywords       []string
	Fields         []Field
}

func (e *RepositoryEntry) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
