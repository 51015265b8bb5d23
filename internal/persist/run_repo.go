package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/CGXDevTeam/Coreria/internal/core/engine"
)

// RunRecord is the summary of one autonomous engine run.
type RunRecord struct {
	ID        int64
	StartedAt time.Time
	Scene     string
	TickRate  float64
	Duration  time.Duration // requested
	Elapsed   time.Duration // measured
	Entities  int
	Steps     uint64
	Frames    uint64
	Overruns  uint64
	Dropped   time.Duration
}

// NewRunRecord fills a record from the engine's counters after a run.
func NewRunRecord(startedAt time.Time, scene string, rate float64, d time.Duration, entities int, s engine.Stats) RunRecord {
	return RunRecord{
		StartedAt: startedAt,
		Scene:     scene,
		TickRate:  rate,
		Duration:  d,
		Elapsed:   s.Elapsed,
		Entities:  entities,
		Steps:     s.Steps,
		Frames:    s.Frames,
		Overruns:  s.Overruns,
		Dropped:   s.Dropped,
	}
}

type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// Save inserts rec and returns its id.
func (r *RunRepo) Save(ctx context.Context, rec RunRecord) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO engine_runs (started_at, scene, tick_rate, duration_ms, elapsed_ms,
		                          entity_count, steps, frames, overruns, dropped_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		rec.StartedAt, rec.Scene, rec.TickRate, rec.Duration.Milliseconds(), rec.Elapsed.Milliseconds(),
		rec.Entities, int64(rec.Steps), int64(rec.Frames), int64(rec.Overruns), rec.Dropped.Milliseconds(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert engine run: %w", err)
	}
	return id, nil
}

// Recent returns up to limit runs, newest first.
func (r *RunRepo) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, started_at, scene, tick_rate, duration_ms, elapsed_ms,
		        entity_count, steps, frames, overruns, dropped_ms
		 FROM engine_runs ORDER BY started_at DESC, id DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query engine runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			rec                         RunRecord
			durMs, elapsedMs, droppedMs int64
			steps, frames, overruns     int64
		)
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.Scene, &rec.TickRate, &durMs, &elapsedMs,
			&rec.Entities, &steps, &frames, &overruns, &droppedMs); err != nil {
			return nil, fmt.Errorf("scan engine run: %w", err)
		}
		rec.Duration = time.Duration(durMs) * time.Millisecond
		rec.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		rec.Dropped = time.Duration(droppedMs) * time.Millisecond
		rec.Steps, rec.Frames, rec.Overruns = uint64(steps), uint64(frames), uint64(overruns)
		out = append(out, rec)
	}
	return out, rows.Err()
}
