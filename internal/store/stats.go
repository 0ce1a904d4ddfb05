package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath         string      `json:"db_path"`
	DBSizeBytes    int64       `json:"db_size_bytes"`
	TotalMemories  int         `json:"total_memories"`
	ActiveMemories int         `json:"active_memories"`
	Reflections    int         `json:"reflections"`
	Knowledge      int         `json:"knowledge"`
	Tiers          []TierStats `json:"tiers"`
}

// TierStats holds per-tier counts for one owner (or all owners when
// no owner filter is given).
type TierStats struct {
	Tier         string  `json:"tier"`
	Count        int     `json:"count"`
	ContentBytes int64   `json:"content_bytes"`
	AvgAccess    float64 `json:"avg_access"`
}

// Stats returns database statistics, optionally scoped to one owner.
func (s *TierStore) Stats(ctx context.Context, ownerID string) (*Stats, error) {
	st := &Stats{DBPath: s.dbPath}

	if info, err := os.Stat(s.dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&st.TotalMemories)
	s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE `+liveWhere, fmtTime(nowUTC())).Scan(&st.ActiveMemories)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reflections`).Scan(&st.Reflections)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM distilled_knowledge`).Scan(&st.Knowledge)

	q := `SELECT tier, COUNT(*) as cnt,
	             COALESCE(SUM(LENGTH(input_text) + LENGTH(COALESCE(output_text, ''))), 0) as bytes,
	             COALESCE(AVG(access_count), 0) as avg_access
	      FROM memories WHERE ` + liveWhere
	args := []interface{}{fmtTime(nowUTC())}
	if ownerID != "" {
		q += ` AND owner_id = ?`
		args = append(args, ownerID)
	}
	q += ` GROUP BY tier ORDER BY CASE tier WHEN 'stm' THEN 0 WHEN 'itm' THEN 1 ELSE 2 END`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var ts TierStats
		rows.Scan(&ts.Tier, &ts.Count, &ts.ContentBytes, &ts.AvgAccess)
		st.Tiers = append(st.Tiers, ts)
	}

	return st, rows.Err()
}
