package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"solace/internal/filestore"
	"solace/internal/services"
)

// compactEvery is the blob compaction interval.
const compactEvery = 6 * time.Hour

// RefSource is any repository that can report the file ids its entities hold.
type RefSource interface {
	FileRefs(ctx context.Context) ([]string, error)
}

// Janitor periodically reclaims file-store blobs nothing references anymore.
// It crawls every repository for held file ids, so a blob survives as long as
// any entity, keyed mapping, or voice cache row still points at it.
type Janitor struct {
	scheduler gocron.Scheduler
	files     *filestore.Service
	sources   []RefSource
}

// NewJanitor creates the background maintenance scheduler.
func NewJanitor(files *filestore.Service, sources ...RefSource) (*Janitor, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Janitor{
		scheduler: scheduler,
		files:     files,
		sources:   sources,
	}, nil
}

// Start registers the compaction job and starts the scheduler.
func (j *Janitor) Start() error {
	_, err := j.scheduler.NewJob(
		gocron.DurationJob(compactEvery),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if err := j.CompactNow(ctx); err != nil {
				log.Printf("⚠️  [JANITOR] Compaction failed: %v", err)
			}
		}),
		gocron.WithName("blob_compaction"),
	)
	if err != nil {
		return fmt.Errorf("failed to register compaction job: %w", err)
	}

	j.scheduler.Start()
	log.Printf("✅ [JANITOR] Started, compacting every %v", compactEvery)
	return nil
}

// Stop shuts the scheduler down, waiting for a running job to finish.
func (j *Janitor) Stop() error {
	return j.scheduler.Shutdown()
}

// CompactNow runs one compaction pass immediately.
func (j *Janitor) CompactNow(ctx context.Context) error {
	refs := []string{}
	for _, src := range j.sources {
		ids, err := src.FileRefs(ctx)
		if err != nil {
			return fmt.Errorf("collect entity refs: %w", err)
		}
		refs = append(refs, ids...)
	}

	removed, err := j.files.Compact(ctx, refs)
	if err != nil {
		return err
	}
	if removed > 0 {
		log.Printf("🗑️  [JANITOR] Reclaimed %d orphaned blobs", removed)
	}
	return nil
}

var (
	_ RefSource = (*services.ContactService)(nil)
	_ RefSource = (*services.EmojiService)(nil)
	_ RefSource = (*services.MomentService)(nil)
	_ RefSource = (*services.ProfileService)(nil)
	_ RefSource = (*services.SongService)(nil)
)
