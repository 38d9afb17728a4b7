package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sci2zero/cris-exchange/internal/domain"
)

// ExportRepository is the pgx-backed canonical export store. Indexed filter
// columns are duplicated out of the JSONB content on every upsert; reads
// reconstruct the record from content alone.
type ExportRepository struct {
	db *pgxpool.Pool
}

func NewExportRepository(db *pgxpool.Pool) *ExportRepository {
	return &ExportRepository{db: db}
}

func (r *ExportRepository) Query(ctx context.Context, q domain.ExportQuery) ([]domain.ExportRecord, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	where, args := buildWhere(q)

	var total int
	countSQL := "SELECT COUNT(*) FROM export_records WHERE " + where
	if err := r.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count export records: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	args = append(args, pageSize, q.Page*pageSize)
	pageSQL := fmt.Sprintf(
		"SELECT content FROM export_records WHERE %s ORDER BY last_updated, database_id LIMIT $%d OFFSET $%d",
		where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, pageSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query export records: %w", err)
	}
	defer rows.Close()

	var records []domain.ExportRecord
	for rows.Next() {
		var content []byte
		if err := rows.Scan(&content); err != nil {
			return nil, 0, err
		}
		var rec domain.ExportRecord
		if err := json.Unmarshal(content, &rec); err != nil {
			return nil, 0, fmt.Errorf("decode export record: %w", err)
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

func buildWhere(q domain.ExportQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conds = append(conds, "kind = "+arg(string(q.Kind)))
	if q.From != nil {
		conds = append(conds, "last_updated >= "+arg(*q.From))
	}
	if q.Until != nil {
		conds = append(conds, "last_updated <= "+arg(*q.Until))
	}
	if len(q.InstitutionIDs) > 0 {
		col := "related_institution_ids"
		if q.ActiveOnly {
			col = "actively_related_institution_ids"
		}
		conds = append(conds, col+" && "+arg(q.InstitutionIDs))
	}
	if len(q.Types) > 0 {
		conds = append(conds, "type = ANY("+arg(q.Types)+")")
	}
	// A record passes a concrete-type filter when it lacks the
	// discriminating field entirely or its value is allowed.
	for _, f := range q.ConcreteTypeFilters {
		field := "content->>" + arg(f.Field)
		conds = append(conds, fmt.Sprintf("(%s IS NULL OR %s = ANY(%s))", field, field, arg(f.Allowed)))
	}
	for _, f := range q.FieldFilters {
		field := "content->>" + arg(f.Field)
		if boolVal, ok := strings.CutPrefix(f.Value, "bool:"); ok {
			conds = append(conds, fmt.Sprintf("COALESCE((%s)::boolean, FALSE) = %s", field, arg(boolVal == "true")))
		} else {
			conds = append(conds, fmt.Sprintf("%s = %s", field, arg(f.Value)))
		}
	}
	return strings.Join(conds, " AND "), args
}

func (r *ExportRepository) FindOne(ctx context.Context, q domain.IdentifierQuery) (*domain.ExportRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(q.Kinds) > 0 {
		kinds := make([]string, 0, len(q.Kinds))
		for _, k := range q.Kinds {
			kinds = append(kinds, string(k))
		}
		conds = append(conds, "kind = ANY("+arg(kinds)+")")
	}
	if len(q.Types) > 0 {
		conds = append(conds, "type = ANY("+arg(q.Types)+")")
	}
	switch {
	case q.DatabaseID != nil:
		conds = append(conds, "database_id = "+arg(*q.DatabaseID))
	case q.OldID != nil:
		conds = append(conds, "old_ids @> ARRAY["+arg(*q.OldID)+"]::integer[]")
	default:
		return nil, errors.New("identifier query has neither database id nor old id")
	}
	if len(q.InstitutionIDs) > 0 {
		conds = append(conds, "related_institution_ids && "+arg(q.InstitutionIDs))
	}

	query := "SELECT content FROM export_records WHERE " + strings.Join(conds, " AND ") + " LIMIT 1"
	var content []byte
	err := r.db.QueryRow(ctx, query, args...).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec := &domain.ExportRecord{}
	if err := json.Unmarshal(content, rec); err != nil {
		return nil, fmt.Errorf("decode export record: %w", err)
	}
	return rec, nil
}

func (r *ExportRepository) EarliestDatestamp(ctx context.Context, institutionIDs []int) (*time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var earliest *time.Time
	err := r.db.QueryRow(ctx,
		`SELECT MIN(last_updated) FROM export_records WHERE related_institution_ids && $1`,
		institutionIDs,
	).Scan(&earliest)
	if err != nil {
		return nil, err
	}
	return earliest, nil
}

func (r *ExportRepository) Upsert(ctx context.Context, rec *domain.ExportRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	content, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode export record: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO export_records (kind, database_id, local_identifier, old_ids, last_updated,
			deleted, type, related_institution_ids, actively_related_institution_ids, content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (kind, database_id) DO UPDATE SET
			local_identifier = EXCLUDED.local_identifier,
			old_ids = EXCLUDED.old_ids,
			last_updated = EXCLUDED.last_updated,
			deleted = EXCLUDED.deleted,
			type = EXCLUDED.type,
			related_institution_ids = EXCLUDED.related_institution_ids,
			actively_related_institution_ids = EXCLUDED.actively_related_institution_ids,
			content = EXCLUDED.content
	`,
		string(rec.Kind), rec.DatabaseID, rec.LocalIdentifier, rec.OldIDs, rec.LastUpdated,
		rec.Deleted, rec.Type, rec.RelatedInstitutionIDs, rec.ActivelyRelatedInstitutionIDs, content,
	)
	return err
}

// MarkDeleted turns a record into a tombstone: content fields are
// suppressed but the row, its identifiers and its institution scope stay.
func (r *ExportRepository) MarkDeleted(ctx context.Context, kind domain.ExportKind, databaseID int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE export_records SET
			deleted = TRUE,
			last_updated = NOW(),
			content = jsonb_build_object(
				'local_identifier', content->'local_identifier',
				'database_id', content->'database_id',
				'old_ids', content->'old_ids',
				'kind', content->'kind',
				'type', content->'type',
				'related_institution_ids', content->'related_institution_ids',
				'actively_related_institution_ids', content->'actively_related_institution_ids',
				'deleted', to_jsonb(TRUE),
				'last_updated', to_jsonb(NOW())
			)
		WHERE kind = $1 AND database_id = $2
	`, string(kind), databaseID)
	return err
}
