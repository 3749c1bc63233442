// Package events appends an audit journal of every committed command. Entries
// are JSON lines written through a rotating file sink; the journal is
// advisory and never blocks a command from committing.
package events

import (
	"io"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Journal struct {
	log *logrus.Logger
}

// NewJournal opens a rotating journal at path. maxSizeMB and maxBackups
// bound disk usage; zero values fall back to lumberjack defaults.
func NewJournal(path string, maxSizeMB, maxBackups int) *Journal {
	sink := &lumberjack.Logger{
		Filename:   filepath.Clean(path),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	log := logrus.New()
	log.SetOutput(sink)
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05Z07:00"})
	log.SetLevel(logrus.InfoLevel)
	return &Journal{log: log}
}

// NewDiscardJournal swallows all entries; used in tests.
func NewDiscardJournal() *Journal {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Journal{log: log}
}

// Append records one committed command against an entity. payload carries
// command-specific fields (deltas, previous status, conflict keys).
func (j *Journal) Append(eventType, entityKind, entityID string, payload map[string]any) {
	fields := logrus.Fields{
		"event":  eventType,
		"entity": entityKind,
		"id":     entityID,
	}
	for k, v := range payload {
		fields[k] = v
	}
	j.log.WithFields(fields).Info(eventType)
}
