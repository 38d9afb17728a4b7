package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InstitutionRepository resolves the organisation-unit hierarchy closure
// used to scope each handler to its institution sub-tree.
type InstitutionRepository struct {
	db *pgxpool.Pool
}

func NewInstitutionRepository(db *pgxpool.Pool) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

// SubtreeIDs returns rootID plus every descendant organisation-unit id.
func (r *InstitutionRepository) SubtreeIDs(ctx context.Context, rootID int) ([]int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		WITH RECURSIVE subtree AS (
			SELECT id FROM organisation_units WHERE id = $1
			UNION ALL
			SELECT ou.id FROM organisation_units ou
			JOIN subtree s ON ou.parent_id = s.id
		)
		SELECT id FROM subtree
	`, rootID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// An unknown root still scopes to itself so queries stay well-formed.
	if len(ids) == 0 {
		ids = []int{rootID}
	}
	return ids, nil
}
