package chat

import (
	"container/list"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ConversationLogger records conversation turns for later review.
type ConversationLogger interface {
	Log(event ConversationLogEvent)
	Close() error
}

// ConversationLogConfig controls the NDJSON transcript logger.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// ConversationLogEvent is one line in a transcript file.
type ConversationLogEvent struct {
	EventID    string         `json:"event_id"`
	Timestamp  string         `json:"timestamp"`
	ChatID     string         `json:"chat_id"`
	Channel    string         `json:"channel"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	Role       string         `json:"role,omitempty"`
	ContentRaw string         `json:"content_raw"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta,omitempty"`
}

const (
	eventUserMessage      = "chat_user_message"
	eventAssistantMessage = "chat_assistant_message"

	directionOutbound = "outbound"
	directionInbound  = "inbound"

	// maxOpenTranscripts bounds the file handles held by the writer. The
	// least recently written transcript is closed first.
	maxOpenTranscripts = 64
)

type noopConversationLogger struct{}

func (noopConversationLogger) Log(ConversationLogEvent) {}
func (noopConversationLogger) Close() error            { return nil }

// NDJSONConversationLogger appends events to <dir>/<chat_id>.ndjson from a
// single background writer. Log never blocks; events are dropped when the
// queue is full.
type NDJSONConversationLogger struct {
	dir    string
	queue  chan ConversationLogEvent
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64

	// Owned by the writer goroutine until done is closed.
	maxOpen int
	files   map[string]*list.Element
	recent  *list.List
}

type openTranscript struct {
	name string
	f    *os.File
}

// NewConversationLogger returns a no-op logger when cfg is disabled.
func NewConversationLogger(cfg ConversationLogConfig, logger *slog.Logger) (ConversationLogger, error) {
	if !cfg.Enabled {
		return noopConversationLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}

	l := &NDJSONConversationLogger{
		dir:    cfg.Dir,
		queue:  make(chan ConversationLogEvent, cfg.QueueSize),
		logger: logger,
		done:    make(chan struct{}),
		maxOpen: maxOpenTranscripts,
		files:   make(map[string]*list.Element),
		recent:  list.New(),
	}
	go l.run()
	return l, nil
}

// Log enqueues an event.
func (l *NDJSONConversationLogger) Log(event ConversationLogEvent) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if event.Content == "" {
		event.Content = cleanForReadability(event.ContentRaw)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- event:
	default:
		if n := l.dropped.Add(1); n == 1 || n%100 == 0 {
			l.logger.Warn("conversation log queue full, dropping events", "dropped", n)
		}
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (l *NDJSONConversationLogger) Dropped() int64 {
	return l.dropped.Load()
}

// Close drains the queue and closes every open transcript file.
func (l *NDJSONConversationLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	if n := l.Dropped(); n > 0 {
		l.logger.Warn("conversation log closed with dropped events", "dropped", n)
	}

	var firstErr error
	for l.recent.Len() > 0 {
		if err := l.evictOldest(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *NDJSONConversationLogger) run() {
	defer close(l.done)
	for event := range l.queue {
		if err := l.write(event); err != nil {
			l.logger.Warn("failed to write conversation log", "chat_id", event.ChatID, "error", err)
		}
	}
}

func (l *NDJSONConversationLogger) write(event ConversationLogEvent) error {
	f, err := l.transcript(transcriptName(event.ChatID))
	if err != nil {
		return err
	}

	line, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = f.Write(append(line, '\n'))
	return err
}

// transcript returns the open file for name, opening it and evicting the
// least recently used handle when the cap is reached.
func (l *NDJSONConversationLogger) transcript(name string) (*os.File, error) {
	if el, ok := l.files[name]; ok {
		l.recent.MoveToFront(el)
		return el.Value.(*openTranscript).f, nil
	}

	for l.recent.Len() >= l.maxOpen {
		if err := l.evictOldest(); err != nil {
			l.logger.Warn("failed to close conversation log", "error", err)
		}
	}

	f, err := os.OpenFile(filepath.Join(l.dir, name+".ndjson"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	l.files[name] = l.recent.PushFront(&openTranscript{name: name, f: f})
	return f, nil
}

func (l *NDJSONConversationLogger) evictOldest() error {
	el := l.recent.Back()
	if el == nil {
		return nil
	}
	t := l.recent.Remove(el).(*openTranscript)
	delete(l.files, t.name)
	if err := t.f.Close(); err != nil {
		return fmt.Errorf("close transcript %s: %w", t.name, err)
	}
	return nil
}

// transcriptName keeps chat ids from escaping the log directory.
func transcriptName(chatID string) string {
	name := filepath.Base(filepath.Clean("/" + chatID))
	if name == "/" || name == "." || name == "" {
		return "unknown"
	}
	return name
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07]*\x07`)

func cleanForReadability(raw string) string {
	s := ansiPattern.ReplaceAllString(raw, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}
