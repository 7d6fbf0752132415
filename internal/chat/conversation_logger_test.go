package chat

import (
	"container/list"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConversationLoggerWritesPerChatNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewConversationLogger(ConversationLogConfig{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Log(ConversationLogEvent{
		ChatID:     "abc123",
		Channel:    ChannelHTTP,
		Direction:  directionOutbound,
		EventType:  eventUserMessage,
		ContentRaw: "how do I \x1b[1mborrow\x1b[0m?",
	})

	path := filepath.Join(dir, "abc123.ndjson")
	line := waitForLogLine(t, path)
	var got ConversationLogEvent
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.EventID == "" || got.Timestamp == "" {
		t.Fatalf("expected event id and timestamp to be filled: %+v", got)
	}
	if got.Content != "how do I borrow?" {
		t.Fatalf("unexpected cleaned content: %q", got.Content)
	}
}

func TestConversationLoggerCloseFlushes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewConversationLogger(ConversationLogConfig{Enabled: true, Dir: dir, QueueSize: 64}, nil)
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		logger.Log(ConversationLogEvent{ChatID: "flush", ContentRaw: "turn"})
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Logging after close is a no-op rather than a panic.
	logger.Log(ConversationLogEvent{ChatID: "flush", ContentRaw: "late"})

	data, err := os.ReadFile(filepath.Join(dir, "flush.ndjson"))
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if n := len(strings.Split(strings.TrimSpace(string(data)), "\n")); n != 10 {
		t.Fatalf("expected 10 lines, got %d", n)
	}
}

func TestConversationLoggerDisabledIsNoop(t *testing.T) {
	t.Parallel()

	logger, err := NewConversationLogger(ConversationLogConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	if _, ok := logger.(noopConversationLogger); !ok {
		t.Fatalf("expected noop logger, got %T", logger)
	}
}

func TestTranscriptNameStaysInDir(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"abc":           "abc",
		"../../etc/pwd": "pwd",
		"":              "unknown",
		"..":            "unknown",
	}
	for in, want := range tests {
		if got := transcriptName(in); got != want {
			t.Errorf("transcriptName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanForReadabilityStripsANSI(t *testing.T) {
	t.Parallel()

	raw := "\x1b[31merror\x1b[0m plain\r\n"
	clean := cleanForReadability(raw)
	if strings.Contains(clean, "\x1b[31m") {
		t.Fatalf("expected ANSI sequence to be stripped: %q", clean)
	}
	if clean != "error plain" {
		t.Fatalf("unexpected cleaned text: %q", clean)
	}
}

// stoppedLogger builds a logger without its writer goroutine so tests can
// drive the queue and the writer by hand.
func stoppedLogger(dir string, queueSize, maxOpen int) *NDJSONConversationLogger {
	return &NDJSONConversationLogger{
		dir:     dir,
		queue:   make(chan ConversationLogEvent, queueSize),
		logger:  slog.Default(),
		done:    make(chan struct{}),
		maxOpen: maxOpen,
		files:   make(map[string]*list.Element),
		recent:  list.New(),
	}
}

func TestConversationLoggerBoundsOpenFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := stoppedLogger(dir, 1, 4)

	for i := 0; i < 20; i++ {
		if err := l.write(ConversationLogEvent{ChatID: fmt.Sprintf("chat%02d", i), ContentRaw: "first"}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if n := l.recent.Len(); n > 4 || len(l.files) != n {
			t.Fatalf("after %d chats: %d handles, %d map entries", i+1, n, len(l.files))
		}
	}
	// chat00 was evicted long ago; writing again reopens and appends.
	if err := l.write(ConversationLogEvent{ChatID: "chat00", ContentRaw: "second"}); err != nil {
		t.Fatalf("rewrite chat00: %v", err)
	}
	if _, ok := l.files["chat01"]; ok {
		t.Fatal("expected least recently used transcript to be closed")
	}

	for l.recent.Len() > 0 {
		if err := l.evictOldest(); err != nil {
			t.Fatalf("evict: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 20 {
		t.Fatalf("expected 20 transcripts, got %d", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(dir, "chat00.ndjson"))
	if err != nil {
		t.Fatalf("read chat00: %v", err)
	}
	if n := len(strings.Split(strings.TrimSpace(string(data)), "\n")); n != 2 {
		t.Fatalf("expected 2 lines in chat00, got %d", n)
	}
}

func TestConversationLoggerDropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	l := stoppedLogger(t.TempDir(), 2, maxOpenTranscripts)
	for i := 0; i < 5; i++ {
		l.Log(ConversationLogEvent{ChatID: "busy", ContentRaw: "turn"})
	}
	if got := l.Dropped(); got != 3 {
		t.Fatalf("expected 3 dropped events, got %d", got)
	}
	if got := len(l.queue); got != 2 {
		t.Fatalf("expected 2 queued events, got %d", got)
	}
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}
