package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound    = errors.New("No message has been stored for the subject")
	ErrBadSnapshot = errors.New("Snapshot is not a JSON object")
)

// Store keeps the last message seen on each subject as a JSON document of the form
//
//   {"<subject>": {"data": "...", "reply": "...", "size": 5, "count": 2}}
//
// Backup and Restore move the whole document in and out.
type Store interface {
	Set(ctx context.Context, subject string, msg Message) error
	Get(ctx context.Context, subject string) ([]byte, error)
	Subjects() []string

	Restore(doc []byte) error
	Backup() ([]byte, error)

	ListenToUpdates() <-chan *Update

	Close() error
}

// Message is what gets stored for a subject.
type Message struct {
	Data  []byte
	Reply string
}

// Update is sent to listeners every time a subject's entry changes.
type Update struct {
	Subject string
	Entry   []byte
}
