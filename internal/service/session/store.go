package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/snailgpt/backend/internal/model/chat"
)

// ErrSessionNotFound is returned when no record exists for an id.
var ErrSessionNotFound = errors.New("session not found")

const (
	recordExt        = ".json"
	titlePrefixRunes = 30
	untitledSession  = "Untitled Session"
)

// Titler produces a short topic title for a transcript.
type Titler interface {
	GenerateTitle(ctx context.Context, history chat.History) (string, error)
}

// FileStore keeps one JSON record per session in a directory.
//
// Records are overwritten whole on every save; there is no cross-process locking.
// Listing excludes records that cannot be read or parsed instead of failing.
type FileStore struct {
	dir    string
	titler Titler
	logger logrus.FieldLogger
	now    func() time.Time
	mu     sync.Mutex
}

// NewFileStore creates the directory if needed. titler may be nil, in which
// case titles always come from the fallback rules.
func NewFileStore(dir string, titler Titler, logger logrus.FieldLogger) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("sessions directory must be provided")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions directory: %w", err)
	}

	return &FileStore{
		dir:    dir,
		titler: titler,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Save persists the session. It assigns an id to a new session, adopts
// explicitTitle when given and otherwise generates a title once. Saving an
// empty history does nothing.
func (s *FileStore) Save(ctx context.Context, sess *chat.Session, explicitTitle string) error {
	if len(sess.History) == 0 {
		return nil
	}

	if sess.IsNew() {
		sess.ID = uuid.NewString()
	}

	if title := strings.TrimSpace(explicitTitle); title != "" {
		sess.Title = title
	} else if sess.Title == "" {
		sess.Title = s.generateTitle(ctx, sess.History)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.recordPath(sess.ID)
	sess.UpdatedAt = s.nextTimestamp(path, sess.UpdatedAt)

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace session file: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"messages":   len(sess.History),
	}).Debug("session saved")
	return nil
}

// nextTimestamp returns a save time strictly greater than any previous save of the record.
func (s *FileStore) nextTimestamp(path string, previous float64) float64 {
	if existing, err := readRecord(path); err == nil && existing.UpdatedAt > previous {
		previous = existing.UpdatedAt
	}

	ts := float64(s.now().UnixNano()) / float64(time.Second)
	if ts <= previous {
		ts = math.Nextafter(previous, math.Inf(1))
	}
	return ts
}

func (s *FileStore) generateTitle(ctx context.Context, history chat.History) string {
	if s.titler != nil {
		title, err := s.titler.GenerateTitle(ctx, history)
		if err == nil {
			return title
		}
		s.logger.WithError(err).Warn("title generation failed, using fallback title")
	}
	return FallbackTitle(history, s.now())
}

// FallbackTitle derives a title without the model: a prefix of the first
// message, or a clock-based name when there is nothing to quote.
func FallbackTitle(history chat.History, now time.Time) string {
	if len(history) > 0 {
		if first := strings.TrimSpace(history[0].Content); first != "" {
			return truncateRunes(first, titlePrefixRunes) + "..."
		}
	}
	return "Session " + now.Format("15:04")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// Load reads a session record.
func (s *FileStore) Load(_ context.Context, id string) (chat.Session, error) {
	if !validID(id) {
		return chat.Session{}, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := readRecord(s.recordPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return chat.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, fmt.Errorf("load session %s: %w", id, err)
	}

	sess.ID = id
	if sess.Title == "" {
		sess.Title = untitledSession
	}
	return sess, nil
}

// List returns summaries of all readable records, most recently updated first.
func (s *FileStore) List(_ context.Context) ([]chat.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []chat.Summary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sessions directory: %w", err)
	}

	summaries := make([]chat.Summary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != recordExt {
			continue
		}
		sess, err := readRecord(filepath.Join(s.dir, entry.Name()))
		// A listed record must be loadable by its id.
		if err != nil || sess.ID != strings.TrimSuffix(entry.Name(), recordExt) || !validID(sess.ID) {
			s.logger.WithField("file", entry.Name()).Debug("skipping unreadable session record")
			continue
		}
		summaries = append(summaries, chat.Summary{ID: sess.ID, Title: sess.Title, UpdatedAt: sess.UpdatedAt})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt > summaries[j].UpdatedAt
	})
	return summaries, nil
}

// ClearAll deletes every session record and reports how many were removed.
func (s *FileStore) ClearAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read sessions directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != recordExt {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove session record: %w", err)
		}
		removed++
	}
	return removed, nil
}

// validID accepts any id that names a file directly inside the store directory.
// New sessions get uuids, but older records may carry other ids.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && filepath.Base(id) == id
}

func (s *FileStore) recordPath(id string) string {
	return filepath.Join(s.dir, id+recordExt)
}

func readRecord(path string) (chat.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return chat.Session{}, err
	}

	var sess chat.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return chat.Session{}, fmt.Errorf("decode session record: %w", err)
	}
	return sess, nil
}
