package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/iconidentify/reelbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memRepository implements repository.ArtifactRepository in memory.
type memRepository struct {
	mu      sync.Mutex
	entries map[domain.CacheKey]domain.CacheEntry
	getErr  error
	putErr  error
	puts    int

	// panicKey makes Get panic for that key.
	panicKey domain.CacheKey
}

func newMemRepository() *memRepository {
	return &memRepository{entries: make(map[domain.CacheKey]domain.CacheEntry)}
}

func (m *memRepository) Get(ctx context.Context, key domain.CacheKey) (*domain.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicKey != "" && key == m.panicKey {
		panic("storage exploded")
	}
	if m.getErr != nil {
		return nil, m.getErr
	}
	e, ok := m.entries[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return &e, nil
}

func (m *memRepository) Put(ctx context.Context, entry *domain.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.entries[entry.Key] = *entry
	return nil
}

func (m *memRepository) Delete(ctx context.Context, key domain.CacheKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *memRepository) Close() error { return nil }

func (m *memRepository) entry(key domain.CacheKey) (domain.CacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e, ok
}

func (m *memRepository) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// mockDownloader writes a file of the configured size for every download.
type mockDownloader struct {
	mu          sync.Mutex
	available   bool
	size        int64
	failURLs    map[string]bool
	panicURLs   map[string]bool
	calls       []string
	paths       []string
	availableCh chan struct{}
	release     chan struct{}
}

func (m *mockDownloader) Available() bool {
	if m.availableCh != nil {
		m.availableCh <- struct{}{}
	}
	return m.available
}

func (m *mockDownloader) Download(ctx context.Context, url, stem string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, url)
	fail := m.failURLs[url]
	explode := m.panicURLs[url]
	m.mu.Unlock()

	if m.release != nil {
		<-m.release
	}
	if explode {
		panic("downloader exploded")
	}
	if fail {
		return "", domain.ErrDownloadFailed
	}

	if err := os.MkdirAll(filepath.Dir(stem), 0755); err != nil {
		return "", err
	}
	path := stem + ".mp4"
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	f.Truncate(m.size)
	f.Close()

	m.mu.Lock()
	m.paths = append(m.paths, path)
	m.mu.Unlock()
	return path, nil
}

func (m *mockDownloader) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockTranscoder writes small output files next to the input.
type mockTranscoder struct {
	mu            sync.Mutex
	compressErr   error
	frameErr      error
	compressCalls int
	frameCalls    int
	outputs       []string
}

func (m *mockTranscoder) Compress(ctx context.Context, path string, targetBytes int64) (string, error) {
	m.mu.Lock()
	m.compressCalls++
	m.mu.Unlock()
	if m.compressErr != nil {
		return "", m.compressErr
	}
	out := strings.TrimSuffix(path, ".mp4") + ".compressed.mp4"
	if err := os.WriteFile(out, []byte("small"), 0644); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.outputs = append(m.outputs, out)
	m.mu.Unlock()
	return out, nil
}

func (m *mockTranscoder) ExtractFrame(ctx context.Context, path string) (string, error) {
	m.mu.Lock()
	m.frameCalls++
	m.mu.Unlock()
	if m.frameErr != nil {
		return "", m.frameErr
	}
	out := strings.TrimSuffix(path, ".mp4") + ".frame.jpg"
	if err := os.WriteFile(out, []byte("jpeg"), 0644); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.outputs = append(m.outputs, out)
	m.mu.Unlock()
	return out, nil
}

type mockCaptioner struct {
	caption  string
	err      error
	panicMsg string
	calls    int
}

func (m *mockCaptioner) Caption(ctx context.Context, imagePath string) (string, error) {
	m.calls++
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.err != nil {
		return "", m.err
	}
	return m.caption, nil
}

type sentVideo struct {
	chatID     int64
	src        domain.VideoSource
	caption    string
	fileExists bool
}

type sentEdit struct {
	chatID    int64
	messageID int
	caption   string
}

type sentMessage struct {
	chatID int64
	text   string
}

// mockTransport records everything sent to chats.
type mockTransport struct {
	mu       sync.Mutex
	typing   []int64
	videos   []sentVideo
	edits    []sentEdit
	messages []sentMessage
	sendErr  error
	nextID   int

	// panicUploads makes the next n file uploads panic.
	panicUploads int
}

func (m *mockTransport) SendTyping(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing = append(m.typing, chatID)
	return nil
}

func (m *mockTransport) SendVideo(ctx context.Context, chatID int64, src domain.VideoSource, caption string) (*domain.Delivery, error) {
	exists := false
	if src.FilePath != "" {
		_, err := os.Stat(src.FilePath)
		exists = err == nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if src.FilePath != "" && m.panicUploads > 0 {
		m.panicUploads--
		panic("upload exploded")
	}
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.videos = append(m.videos, sentVideo{chatID: chatID, src: src, caption: caption, fileExists: exists})
	m.nextID++

	handle := src.Handle
	if handle == "" {
		handle = "file-" + strconv.Itoa(m.nextID)
	}
	return &domain.Delivery{MessageID: m.nextID, Handle: handle}, nil
}

func (m *mockTransport) EditCaption(ctx context.Context, chatID int64, messageID int, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, sentEdit{chatID: chatID, messageID: messageID, caption: caption})
	return nil
}

func (m *mockTransport) SendMessage(ctx context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, sentMessage{chatID: chatID, text: text})
	return nil
}

func (m *mockTransport) sentVideos() []sentVideo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentVideo(nil), m.videos...)
}

func (m *mockTransport) sentMessages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.messages...)
}

var errBoom = errors.New("boom")
