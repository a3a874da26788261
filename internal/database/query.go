package database

import (
	"database/sql"
	"time"
)

const deletionColumns = `id, run_id, timestamp, action, path, file_name, keeper, digest, size, reason, error_message`

// GetRecentDeletions returns the N most recent deletion events
func (d *DeletionDB) GetRecentDeletions(limit int) ([]DeletionRecord, error) {
	return d.queryDeletions(`
	SELECT `+deletionColumns+`
	FROM deletions
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, limit)
}

// GetDeletionsByRun returns every outcome of one run in the order recorded
func (d *DeletionDB) GetDeletionsByRun(runID string) ([]DeletionRecord, error) {
	return d.queryDeletions(`
	SELECT `+deletionColumns+`
	FROM deletions
	WHERE run_id = ?
	ORDER BY id ASC
	`, runID)
}

// GetDeletionsByAction returns deletions filtered by action type
func (d *DeletionDB) GetDeletionsByAction(action string) ([]DeletionRecord, error) {
	return d.queryDeletions(`
	SELECT `+deletionColumns+`
	FROM deletions
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC
	`, action)
}

// GetDeletionsByDigest returns every recorded member of one duplicate group
func (d *DeletionDB) GetDeletionsByDigest(digest string) ([]DeletionRecord, error) {
	return d.queryDeletions(`
	SELECT `+deletionColumns+`
	FROM deletions
	WHERE digest = ?
	ORDER BY timestamp DESC, id DESC
	`, digest)
}

// GetRecentRuns returns the N most recently started runs
func (d *DeletionDB) GetRecentRuns(limit int) ([]RunRecord, error) {
	rows, err := d.db.Query(`
	SELECT run_id, root, started_at, finished_at, state, dry_run, verify_content,
	       groups_found, deleted, errors, bytes_freed
	FROM runs
	ORDER BY started_at DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var finished sql.NullTime
		if err := rows.Scan(
			&r.RunID, &r.Root, &r.StartedAt, &finished, &r.State, &r.DryRun, &r.VerifyContent,
			&r.Groups, &r.Deleted, &r.Errors, &r.BytesFreed,
		); err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetTotalSpaceFreed returns bytes freed by DELETE outcomes in a time range
func (d *DeletionDB) GetTotalSpaceFreed(start, end time.Time) (int64, error) {
	var total sql.NullInt64
	err := d.db.QueryRow(`
		SELECT SUM(size) FROM deletions
		WHERE action = 'DELETE' AND timestamp BETWEEN ? AND ?
	`, start, end).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Int64, nil
}

// GetDeletionCountByAction returns deletion counts grouped by action
func (d *DeletionDB) GetDeletionCountByAction() (map[string]int, error) {
	rows, err := d.db.Query(`
	SELECT action, COUNT(*) as count
	FROM deletions
	GROUP BY action
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		counts[action] = count
	}
	return counts, rows.Err()
}

// DeletionStats holds aggregated statistics
type DeletionStats struct {
	TotalRuns       int
	TotalDeletions  int
	TotalSkipped    int
	TotalErrors     int
	TotalSpaceFreed int64
	ByAction        map[string]int
	StartDate       time.Time
	EndDate         time.Time
}

// GetDeletionStats returns statistics for the last days days
func (d *DeletionDB) GetDeletionStats(days int) (*DeletionStats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &DeletionStats{
		StartDate: since,
		EndDate:   now,
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN action = 'DELETE' THEN 1 END),
			COUNT(CASE WHEN action = 'SKIP' THEN 1 END),
			COUNT(CASE WHEN action = 'ERROR' THEN 1 END)
		FROM deletions
		WHERE timestamp >= ?
	`, since).Scan(&stats.TotalDeletions, &stats.TotalSkipped, &stats.TotalErrors)
	if err != nil {
		return nil, err
	}

	if err := d.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE started_at >= ?`, since).Scan(&stats.TotalRuns); err != nil {
		return nil, err
	}

	stats.TotalSpaceFreed, err = d.GetTotalSpaceFreed(since, now)
	if err != nil {
		return nil, err
	}

	stats.ByAction, err = d.GetDeletionCountByAction()
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// DeleteOldRecords removes deletion and run records older than the given days
func (d *DeletionDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	result, err := d.db.Exec(`DELETE FROM deletions WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	if _, err := d.db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff); err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// queryDeletions is a helper function to execute queries and scan results
func (d *DeletionDB) queryDeletions(query string, args ...interface{}) ([]DeletionRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DeletionRecord
	for rows.Next() {
		var r DeletionRecord
		var fileName, reason, errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.RunID, &r.Timestamp, &r.Action, &r.Path, &fileName,
			&r.Keeper, &r.Digest, &r.Size, &reason, &errMsg,
		)
		if err != nil {
			return nil, err
		}

		r.FileName = fileName.String
		r.Reason = reason.String
		r.ErrorMessage = errMsg.String
		records = append(records, r)
	}
	return records, rows.Err()
}
