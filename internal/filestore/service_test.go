package filestore

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"solace/internal/database"
	"solace/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize database: %v", err)
	}
	return NewService(db)
}

func TestPutAndGetByKey(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	fileID, err := s.Put(ctx, models.DomainAvatar, "contact-1", []byte("png-bytes"), "image/png")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	blob, err := s.GetByID(ctx, fileID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if string(blob.Bytes) != "png-bytes" {
		t.Errorf("bytes = %q, want %q", blob.Bytes, "png-bytes")
	}
	if blob.MimeType != "image/png" {
		t.Errorf("mime = %q, want image/png", blob.MimeType)
	}

	keyed, err := s.GetByKey(ctx, models.DomainAvatar, "contact-1")
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	if keyed.FileID != fileID {
		t.Errorf("keyed file id = %q, want %q", keyed.FileID, fileID)
	}
}

func TestPutReplacingKeyKeepsOldBlob(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	first, err := s.Put(ctx, models.DomainAvatar, "contact-1", []byte("v1"), "image/png")
	if err != nil {
		t.Fatalf("Put v1: %v", err)
	}
	second, err := s.Put(ctx, models.DomainAvatar, "contact-1", []byte("v2"), "image/png")
	if err != nil {
		t.Fatalf("Put v2: %v", err)
	}
	if first == second {
		t.Fatal("replacement reused the file id; blobs must be immutable")
	}

	// The old blob is still readable until compaction.
	if _, err := s.GetByID(ctx, first); err != nil {
		t.Errorf("old blob unreadable before compaction: %v", err)
	}

	keyed, err := s.GetByKey(ctx, models.DomainAvatar, "contact-1")
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	if keyed.FileID != second {
		t.Errorf("key points at %q, want replacement %q", keyed.FileID, second)
	}
}

func TestPutRejectsEmptyBlob(t *testing.T) {
	s := newTestService(t)
	_, err := s.Put(context.Background(), models.DomainAvatar, "contact-1", nil, "image/png")
	if !errors.Is(err, database.ErrInvalidInput) {
		t.Fatalf("Put(empty) = %v, want ErrInvalidInput", err)
	}
}

func TestTransientURLs(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	fileID, err := s.Put(ctx, models.DomainEmoji, "cat", []byte("gif"), "image/gif")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	url := s.GetURL(fileID)
	if !strings.HasPrefix(url, URLPathPrefix) {
		t.Fatalf("url %q missing prefix %q", url, URLPathPrefix)
	}
	token := strings.TrimPrefix(url, URLPathPrefix)

	got, ok := s.ResolveURL(token)
	if !ok || got != fileID {
		t.Fatalf("ResolveURL = (%q, %v), want (%q, true)", got, ok, fileID)
	}

	// Two URLs for the same blob are distinct.
	if other := s.GetURL(fileID); other == url {
		t.Error("GetURL returned the same token twice")
	}

	s.ReleaseURL(url)
	if _, ok := s.ResolveURL(token); ok {
		t.Error("token still resolvable after release")
	}
}

func TestVoiceCacheRoundTrip(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	hit, err := s.VoiceCacheLookup(ctx, "hello", "voice-a")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if hit != "" {
		t.Fatalf("unexpected hit %q on empty cache", hit)
	}

	fileID, err := s.VoiceCacheStore(ctx, "hello", "voice-a", []byte("mp3"), "audio/mpeg")
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	hit, err = s.VoiceCacheLookup(ctx, "hello", "voice-a")
	if err != nil {
		t.Fatalf("lookup after store: %v", err)
	}
	if hit != fileID {
		t.Errorf("lookup = %q, want %q", hit, fileID)
	}

	// Same text with a different voice is a distinct cache entry.
	hit, err = s.VoiceCacheLookup(ctx, "hello", "voice-b")
	if err != nil {
		t.Fatalf("lookup other voice: %v", err)
	}
	if hit != "" {
		t.Errorf("voice-b lookup = %q, want miss", hit)
	}
}

func TestCompactKeepsReferencedBlobs(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	keyed, err := s.Put(ctx, models.DomainAvatar, "contact-1", []byte("keep-keyed"), "image/png")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	entity, err := s.PutBlob(ctx, models.DomainMoment, []byte("keep-entity"), "image/png", "")
	if err != nil {
		t.Fatalf("PutBlob entity: %v", err)
	}
	orphan, err := s.PutBlob(ctx, models.DomainMoment, []byte("orphan"), "image/png", "")
	if err != nil {
		t.Fatalf("PutBlob orphan: %v", err)
	}
	voice, err := s.VoiceCacheStore(ctx, "hi", "v", []byte("mp3"), "audio/mpeg")
	if err != nil {
		t.Fatalf("voice store: %v", err)
	}

	removed, err := s.Compact(ctx, []string{entity})
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	for _, id := range []string{keyed, entity, voice} {
		if _, err := s.GetByID(ctx, id); err != nil {
			t.Errorf("referenced blob %s was compacted: %v", id, err)
		}
	}
	if _, err := s.GetByID(ctx, orphan); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("orphan lookup = %v, want ErrNotFound", err)
	}
}
