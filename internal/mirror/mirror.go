// Package mirror populates the canonical export store from the primary
// store. Each entity kind mirrors independently; jobs run concurrently in
// a bounded pool and paginate their source in small fixed-size chunks so
// the working set stays bounded regardless of catalog size.
package mirror

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sci2zero/cris-exchange/internal/domain"
	"golang.org/x/sync/errgroup"
)

// chunkSize is the per-page fetch size of a mirror job.
const chunkSize = 10

// Source is the upstream (primary-store) reader. Page returns one chunk
// of records changed since the given time plus whether more follow;
// DeletedIDs lists entities removed upstream since the same point.
type Source interface {
	Page(ctx context.Context, kind domain.ExportKind, since time.Time, page, pageSize int) ([]domain.ExportRecord, bool, error)
	DeletedIDs(ctx context.Context, kind domain.ExportKind, since time.Time) ([]int, error)
}

type Service struct {
	source  Source
	store   domain.ExportRecordStore
	workers int
}

func NewService(source Source, store domain.ExportRecordStore, workers int) *Service {
	if workers <= 0 {
		workers = 2
	}
	return &Service{source: source, store: store, workers: workers}
}

// Run mirrors every entity kind changed since the given time, joining all
// jobs before returning. The first failing job cancels the rest.
func (s *Service) Run(ctx context.Context, since time.Time) error {
	kinds := []domain.ExportKind{
		domain.KindDocument,
		domain.KindPerson,
		domain.KindOrganisationUnit,
		domain.KindEvent,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, kind := range kinds {
		kind := kind
		g.Go(func() error {
			return s.mirrorKind(ctx, kind, since)
		})
	}
	return g.Wait()
}

func (s *Service) mirrorKind(ctx context.Context, kind domain.ExportKind, since time.Time) error {
	start := time.Now()
	total := 0
	for page := 0; ; page++ {
		records, more, err := s.source.Page(ctx, kind, since, page, chunkSize)
		if err != nil {
			return fmt.Errorf("mirror %s page %d: %w", kind, page, err)
		}
		for i := range records {
			if err := s.store.Upsert(ctx, &records[i]); err != nil {
				return fmt.Errorf("mirror %s upsert %d: %w", kind, records[i].DatabaseID, err)
			}
			total++
		}
		if !more {
			break
		}
	}

	deletedIDs, err := s.source.DeletedIDs(ctx, kind, since)
	if err != nil {
		return fmt.Errorf("mirror %s deletions: %w", kind, err)
	}
	for _, id := range deletedIDs {
		if err := s.store.MarkDeleted(ctx, kind, id); err != nil {
			return fmt.Errorf("mirror %s tombstone %d: %w", kind, id, err)
		}
	}

	log.Printf("Mirrored %s: %d upserted, %d tombstoned in %s",
		kind, total, len(deletedIDs), time.Since(start).Round(time.Millisecond))
	return nil
}
