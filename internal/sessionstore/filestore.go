package sessionstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/concierge/orchestrator/pkg/models"
)

// FileStore is the default Store implementation: a hierarchical
// directory tree under root, one sub-tree per session. Every artifact
// write is serialized per-path by
// a keyed mutex and lands on disk via write-to-temp-then-rename so a
// crash mid-write never leaves a torn file.
type FileStore struct {
	root string

	locksMu sync.Mutex
	locks   map[string]*sync.RWMutex
}

// NewFileStore creates a FileStore rooted at root, creating the
// directory if it does not already exist.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{root: root, locks: make(map[string]*sync.RWMutex)}, nil
}

// checkCtx reports the request's cancellation signal at a suspension
// point, per §5's requirement that every session-store read/write
// honor it.
func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return models.WrapError(models.ErrCancelled, "sessionstore", "request cancelled", err)
	}
	return nil
}

func (s *FileStore) lockFor(path string) *sync.RWMutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[path] = l
	}
	return l
}

func (s *FileStore) sessionDir(sessionID string) string {
	return filepath.Join(s.root, "sessions", sessionID)
}

func (s *FileStore) chatFile(sessionID string) string {
	return filepath.Join(s.sessionDir(sessionID), "chat.json")
}

func (s *FileStore) notesFile(sessionID string) string {
	return filepath.Join(s.sessionDir(sessionID), "notes.json")
}

func (s *FileStore) draftsDir(sessionID string) string {
	return filepath.Join(s.sessionDir(sessionID), "email_drafts")
}

func (s *FileStore) draftIndexFile(sessionID string) string {
	return filepath.Join(s.draftsDir(sessionID), "index.json")
}

func (s *FileStore) draftFile(sessionID, draftID string) string {
	return filepath.Join(s.draftsDir(sessionID), "draft_"+draftID+".json")
}

func (s *FileStore) filesDir(sessionID string) string {
	return filepath.Join(s.sessionDir(sessionID), "files")
}

// writeAtomic writes data to path via a temp file in the same
// directory followed by a rename, so readers never observe a partial
// write.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// ── Chat transcript ──────────────────────────────────────────

func (s *FileStore) AppendMessage(ctx context.Context, sessionID string, msg models.ChatMessage) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	path := s.chatFile(sessionID)
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	var history []models.ChatMessage
	if _, err := readJSON(path, &history); err != nil {
		return models.WrapError(models.ErrProviderPermanent, "sessionstore.AppendMessage", "corrupt chat log", err)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	history = append(history, msg)
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

func (s *FileStore) LoadHistory(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	path := s.chatFile(sessionID)
	lock := s.lockFor(path)
	lock.RLock()
	defer lock.RUnlock()

	var history []models.ChatMessage
	if _, err := readJSON(path, &history); err != nil {
		return nil, models.WrapError(models.ErrProviderPermanent, "sessionstore.LoadHistory", "corrupt chat log", err)
	}
	// Ordering invariant: strictly by timestamp.
	sort.Slice(history, func(i, j int) bool { return history[i].Timestamp.Before(history[j].Timestamp) })
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history, nil
}

// ── Email drafts ──────────────────────────────────────────────

func (s *FileStore) SaveDraft(ctx context.Context, draft models.EmailDraft) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	path := s.draftFile(draft.SessionID, draft.ID)
	lock := s.lockFor(path)
	lock.Lock()
	data, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		lock.Unlock()
		return err
	}
	if err := writeAtomic(path, data); err != nil {
		lock.Unlock()
		return err
	}
	lock.Unlock()

	return s.addToIndex(draft.SessionID, draft.ID)
}

// addToIndex appends draftID to the session's index.json if absent.
// The index is an optimization over a directory scan, not the source
// of truth — rebuildIndex below reconstructs it from disk.
func (s *FileStore) addToIndex(sessionID, draftID string) error {
	path := s.draftIndexFile(sessionID)
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	var ids []string
	if _, err := readJSON(path, &ids); err != nil {
		return err
	}
	for _, id := range ids {
		if id == draftID {
			return nil
		}
	}
	ids = append(ids, draftID)
	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

func (s *FileStore) removeFromIndex(sessionID, draftID string) error {
	path := s.draftIndexFile(sessionID)
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	var ids []string
	if _, err := readJSON(path, &ids); err != nil {
		return err
	}
	out := ids[:0]
	for _, id := range ids {
		if id != draftID {
			out = append(out, id)
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

func (s *FileStore) GetDraft(ctx context.Context, draftID string, sessionID string) (models.EmailDraft, error) {
	if err := checkCtx(ctx); err != nil {
		return models.EmailDraft{}, err
	}
	if sessionID != "" {
		return s.getDraftInSession(draftID, sessionID)
	}
	// session unknown: scan every session directory.
	sessionsRoot := filepath.Join(s.root, "sessions")
	entries, err := os.ReadDir(sessionsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return models.EmailDraft{}, models.NewError(models.ErrProviderNotFound, "sessionstore.GetDraft", "draft not found")
		}
		return models.EmailDraft{}, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if d, err := s.getDraftInSession(draftID, e.Name()); err == nil {
			return d, nil
		}
	}
	return models.EmailDraft{}, models.NewError(models.ErrProviderNotFound, "sessionstore.GetDraft", "draft not found in any session")
}

func (s *FileStore) getDraftInSession(draftID, sessionID string) (models.EmailDraft, error) {
	path := s.draftFile(sessionID, draftID)
	lock := s.lockFor(path)
	lock.RLock()
	defer lock.RUnlock()

	var d models.EmailDraft
	ok, err := readJSON(path, &d)
	if err != nil {
		return models.EmailDraft{}, err
	}
	if !ok {
		return models.EmailDraft{}, models.NewError(models.ErrProviderNotFound, "sessionstore.GetDraft", "draft not found")
	}
	return d, nil
}

func (s *FileStore) ListDrafts(ctx context.Context, sessionID string, status models.DraftStatus) ([]models.EmailDraft, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	ids, err := s.rebuildIndex(sessionID)
	if err != nil {
		return nil, err
	}
	var out []models.EmailDraft
	for _, id := range ids {
		d, err := s.getDraftInSession(id, sessionID)
		if err != nil {
			continue
		}
		if status == "" || d.Status == status {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// rebuildIndex reconstructs the draft ID list directly from the
// directory listing, so the index file can always be regenerated if
// lost or corrupted: the directory is the source of truth, the index
// is just an optimization over it.
func (s *FileStore) rebuildIndex(sessionID string) ([]string, error) {
	dir := s.draftsDir(sessionID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "draft_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(name, "draft_"), ".json"))
	}
	return ids, nil
}

func (s *FileStore) UpdateDraft(ctx context.Context, draft models.EmailDraft) error {
	return s.SaveDraft(ctx, draft)
}

func (s *FileStore) DeleteDraft(ctx context.Context, sessionID string, draftID string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	path := s.draftFile(sessionID, draftID)
	lock := s.lockFor(path)
	lock.Lock()
	err := os.Remove(path)
	lock.Unlock()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return s.removeFromIndex(sessionID, draftID)
}

func (s *FileStore) ListPendingApprovals(ctx context.Context) ([]models.EmailDraft, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	sessionsRoot := filepath.Join(s.root, "sessions")
	entries, err := os.ReadDir(sessionsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []models.EmailDraft
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		drafts, err := s.ListDrafts(ctx, e.Name(), models.DraftPendingApproval)
		if err != nil {
			continue
		}
		out = append(out, drafts...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// CleanupOldDrafts deletes only terminal-state drafts older than the
// threshold; non-terminal drafts are preserved indefinitely.
func (s *FileStore) CleanupOldDrafts(ctx context.Context, olderThanDays int) (int, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	sessionsRoot := filepath.Join(s.root, "sessions")
	entries, err := os.ReadDir(sessionsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	deleted := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sessionID := e.Name()
		ids, err := s.rebuildIndex(sessionID)
		if err != nil {
			continue
		}
		for _, id := range ids {
			d, err := s.getDraftInSession(id, sessionID)
			if err != nil {
				continue
			}
			if d.Status.IsTerminal() && d.UpdatedAt.Before(cutoff) {
				if err := s.DeleteDraft(ctx, sessionID, id); err == nil {
					deleted++
				}
			}
		}
	}
	if deleted > 0 {
		log.Info().Int("deleted", deleted).Int("older_than_days", olderThanDays).Msg("cleaned up terminal email drafts")
	}
	return deleted, nil
}

// ── Notes & files ─────────────────────────────────────────────

func (s *FileStore) SaveNote(ctx context.Context, sessionID string, note string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	path := s.notesFile(sessionID)
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	var notes []string
	if _, err := readJSON(path, &notes); err != nil {
		return err
	}
	notes = append(notes, note)
	data, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

func (s *FileStore) ListFiles(ctx context.Context, sessionID string) ([]string, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	dir := s.filesDir(sessionID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *FileStore) SaveFile(ctx context.Context, sessionID string, name string, blob []byte) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	path := filepath.Join(s.filesDir(sessionID), name)
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()
	return writeAtomic(path, blob)
}

// Compile-time check that FileStore implements Store.
var _ Store = (*FileStore)(nil)
