package sqlite

import (
	"context"
	"fmt"
)

// PartyLessons returns the lesson ids for an identity in the given role, in
// insertion order. Unknown identities yield an empty, non-nil slice.
func (s *SQLiteStore) PartyLessons(ctx context.Context, identity, role string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT lesson_id FROM party_lessons WHERE identity = ? AND role = ? ORDER BY position",
		identity, role,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get party lessons: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan lesson id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate party lessons: %w", err)
	}
	return ids, nil
}
