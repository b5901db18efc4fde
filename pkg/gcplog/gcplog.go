// Package gcplog creates the process logger. If GCP_PROJECT_ID and GCP_LOGNAME are set, log lines
// go to Google Cloud Logging. Otherwise we use the regular stdout logger.
//
// Every prediction cycle emits Debug lines with its stage timings, so by default those are not
// sent to GCP. Set GCP_LOGLEVEL=debug to see them.
package gcplog

import (
	"context"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/logging"
	"github.com/cyclopcam/logs"
)

type Level int

const (
	LevelDebug    Level = iota // information that only a programmer will understand
	LevelInfo                  // information that a non-programmer might be interested in
	LevelWarn                  // speeds up tracking down issues, once you know about them
	LevelError                 // should not have happened
	LevelCritical              // wake somebody up
)

// Attached to every entry, so that one log name can be shared between services
const serviceLabel = "yorubaocr"

// Logger sends log lines to Cloud Logging
type Logger struct {
	client   *logging.Client
	gcp      *logging.Logger
	minLevel Level
}

// ParseLevel parses "debug", "info", "warn", "error" or "critical".
// An empty string is LevelInfo.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "critical":
		return LevelCritical, nil
	}
	return LevelInfo, fmt.Errorf("Unknown log level '%v'", s)
}

// NewLog returns a Cloud Logging logger if GCP_PROJECT_ID and GCP_LOGNAME are set,
// and logs.NewLog() otherwise.
func NewLog() (logs.Log, error) {
	gcpProjectID := os.Getenv("GCP_PROJECT_ID")
	gcpLogname := os.Getenv("GCP_LOGNAME")
	if gcpProjectID == "" || gcpLogname == "" {
		return logs.NewLog()
	}
	minLevel, err := ParseLevel(os.Getenv("GCP_LOGLEVEL"))
	if err != nil {
		return nil, err
	}
	fmt.Printf("Logging to GCP %v / %v (you won't see further logs on stdout)\n", gcpProjectID, gcpLogname)
	client, err := logging.NewClient(context.Background(), gcpProjectID)
	if err != nil {
		return nil, fmt.Errorf("Failed to create GCP logging client: %w", err)
	}
	return &Logger{
		client:   client,
		gcp:      client.Logger(gcpLogname, logging.CommonLabels(map[string]string{"service": serviceLabel})),
		minLevel: minLevel,
	}, nil
}

func LevelToGCP(level Level) logging.Severity {
	switch level {
	case LevelDebug:
		return logging.Debug
	case LevelInfo:
		return logging.Info
	case LevelWarn:
		return logging.Warning
	case LevelError:
		return logging.Error
	case LevelCritical:
		return logging.Critical
	}
	return logging.Default
}

func (l *Logger) write(level Level, format string, a ...interface{}) {
	if level < l.minLevel {
		return
	}
	l.gcp.Log(logging.Entry{
		Severity: LevelToGCP(level),
		Payload:  fmt.Sprintf(format, a...),
	})
}

func (l *Logger) Close() {
	l.gcp.Flush()
	l.client.Close()
}

func (l *Logger) Debugf(format string, a ...interface{}) {
	l.write(LevelDebug, format, a...)
}

func (l *Logger) Infof(format string, a ...interface{}) {
	l.write(LevelInfo, format, a...)
}

func (l *Logger) Warnf(format string, a ...interface{}) {
	l.write(LevelWarn, format, a...)
}

func (l *Logger) Errorf(format string, a ...interface{}) {
	l.write(LevelError, format, a...)
}

func (l *Logger) Criticalf(format string, a ...interface{}) {
	l.write(LevelCritical, format, a...)
}
