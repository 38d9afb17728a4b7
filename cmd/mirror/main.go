// Mirror driver: loads one batch of export records from a primary-store
// dump into the canonical export table, propagating upstream deletions as
// tombstones. Meant to be cron-invoked.
//
// Usage:
//
//	go run ./cmd/mirror --db=$DATABASE_URL --records dump.jsonl [--deleted deleted.txt] [--since 2024-01-01]
//
// The records file holds one export record JSON object per line, the
// deletions file one "<kind> <databaseId>" pair per line.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/sci2zero/cris-exchange/internal/domain"
	"github.com/sci2zero/cris-exchange/internal/mirror"
	"github.com/sci2zero/cris-exchange/internal/repository/postgres"
)

func main() {
	_ = godotenv.Load()

	dbURL := flag.String("db", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	recordsPath := flag.String("records", "", "export record dump (JSON lines)")
	deletedPath := flag.String("deleted", "", "upstream deletions list (optional)")
	since := flag.String("since", "", "only mirror records changed since this date (YYYY-MM-DD)")
	workers := flag.Int("workers", 2, "concurrent mirror jobs")
	flag.Parse()

	if *dbURL == "" || *recordsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	sinceTime := time.Time{}
	if *since != "" {
		parsed, err := time.Parse("2006-01-02", *since)
		if err != nil {
			log.Fatalf("Invalid --since value: %v", err)
		}
		sinceTime = parsed
	}

	source, err := loadDumpSource(*recordsPath, *deletedPath)
	if err != nil {
		log.Fatalf("Failed to load dump: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, *dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	store := postgres.NewExportRepository(pool)
	if err := mirror.NewService(source, store, *workers).Run(ctx, sinceTime); err != nil {
		log.Fatalf("Mirror run failed: %v", err)
	}
}

// dumpSource serves a pre-exported dump through the mirror source
// contract so the service paginates it the same way it would a live
// upstream.
type dumpSource struct {
	records map[domain.ExportKind][]domain.ExportRecord
	deleted map[domain.ExportKind][]int
}

func loadDumpSource(recordsPath, deletedPath string) (*dumpSource, error) {
	src := &dumpSource{
		records: make(map[domain.ExportKind][]domain.ExportRecord),
		deleted: make(map[domain.ExportKind][]int),
	}

	f, err := os.Open(recordsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec domain.ExportRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		src.records[rec.Kind] = append(src.records[rec.Kind], rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if deletedPath == "" {
		return src, nil
	}
	df, err := os.Open(deletedPath)
	if err != nil {
		return nil, err
	}
	defer df.Close()

	dscanner := bufio.NewScanner(df)
	line = 0
	for dscanner.Scan() {
		line++
		fields := strings.Fields(dscanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("deletions line %d: want \"<kind> <id>\"", line)
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("deletions line %d: %w", line, err)
		}
		kind := domain.ExportKind(fields[0])
		src.deleted[kind] = append(src.deleted[kind], id)
	}
	return src, dscanner.Err()
}

func (s *dumpSource) Page(_ context.Context, kind domain.ExportKind, since time.Time, page, pageSize int) ([]domain.ExportRecord, bool, error) {
	var changed []domain.ExportRecord
	for _, rec := range s.records[kind] {
		if since.IsZero() || !rec.LastUpdated.Before(since) {
			changed = append(changed, rec)
		}
	}
	start := page * pageSize
	if start >= len(changed) {
		return nil, false, nil
	}
	end := start + pageSize
	if end > len(changed) {
		end = len(changed)
	}
	return changed[start:end], end < len(changed), nil
}

func (s *dumpSource) DeletedIDs(_ context.Context, kind domain.ExportKind, _ time.Time) ([]int, error) {
	return s.deleted[kind], nil
}
