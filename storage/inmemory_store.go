package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

type InmemoryStore struct {
	mu     sync.Mutex
	values []byte

	updateChans []chan *Update

	// stop will be closed when Close() is called
	stop chan struct{}
	once sync.Once
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		values:      []byte("{}"),
		stop:        make(chan struct{}),
		updateChans: make([]chan *Update, 0),
	}
}

func (i *InmemoryStore) Close() error {
	i.once.Do(func() {
		close(i.stop)

		i.mu.Lock()
		defer i.mu.Unlock()

		for _, updateChan := range i.updateChans {
			close(updateChan)
		}
		i.updateChans = nil
	})

	return nil
}

func (i *InmemoryStore) Set(ctx context.Context, subject string, msg Message) (err error) {
	key := escapeKey(subject)

	i.mu.Lock()
	defer i.mu.Unlock()

	count := gjson.GetBytes(i.values, key+".count").Int() + 1

	entry := []byte("{}")
	fields := []struct {
		path  string
		value interface{}
	}{
		{"data", string(msg.Data)},
		{"reply", msg.Reply},
		{"size", len(msg.Data)},
		{"count", count},
	}

	for _, f := range fields {
		if entry, err = sjson.SetBytes(entry, f.path, f.value); err != nil {
			return fmt.Errorf("Failed to store '%s': %w", subject, err)
		}
	}

	if i.values, err = sjson.SetRawBytes(i.values, key, entry); err != nil {
		return fmt.Errorf("Failed to store '%s': %w", subject, err)
	}

	if i.isRunning() {
		for _, updateChan := range i.updateChans {
			select {
			case updateChan <- &Update{Subject: subject, Entry: entry}:
			default:
				// listener is behind, it will see the next update
			}
		}
	}

	return nil
}

// Get returns the raw JSON entry for subject.
func (i *InmemoryStore) Get(ctx context.Context, subject string) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	result := gjson.GetBytes(i.values, escapeKey(subject))
	if !result.Exists() {
		return nil, fmt.Errorf("Failed to get '%s': %w", subject, ErrNotFound)
	}

	return []byte(result.Raw), nil
}

// Subjects lists every subject with a stored message, in the order they were first seen.
func (i *InmemoryStore) Subjects() []string {
	i.mu.Lock()
	defer i.mu.Unlock()

	subjects := make([]string, 0)
	gjson.ParseBytes(i.values).ForEach(func(key, _ gjson.Result) bool {
		subjects = append(subjects, key.String())
		return true
	})

	return subjects
}

func (i *InmemoryStore) ListenToUpdates() <-chan *Update {
	i.mu.Lock()
	defer i.mu.Unlock()

	updateChan := make(chan *Update, 255)
	if !i.isRunning() {
		close(updateChan)
		return updateChan
	}

	i.updateChans = append(i.updateChans, updateChan)
	return updateChan
}

func (i *InmemoryStore) Restore(doc []byte) error {
	if len(doc) == 0 {
		doc = []byte("{}")
	}

	if !gjson.ValidBytes(doc) || !gjson.ParseBytes(doc).IsObject() {
		return ErrBadSnapshot
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.values = append([]byte(nil), doc...)
	return nil
}

func (i *InmemoryStore) Backup() ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	return append([]byte(nil), i.values...), nil
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

// escapeKey turns a subject into a path that gjson and sjson read as a single key.
func escapeKey(subject string) string {
	var b strings.Builder
	b.Grow(len(subject) + 4)

	for i := 0; i < len(subject); i++ {
		switch c := subject[i]; c {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%', ':':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

var _ Store = (*InmemoryStore)(nil)
