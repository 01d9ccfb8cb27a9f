package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the durable store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) GetUser(ctx context.Context, id string) (User, error) {
	var user User
	var nextCall *time.Time
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, phone, timezone, instructions, active, next_call_at, created_at
		FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.Name, &user.Phone, &user.Timezone,
			&user.Instructions, &user.Active, &nextCall, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	if nextCall != nil {
		user.NextCallAt = *nextCall
	}
	return user, nil
}

func (p *Postgres) DueUsers(ctx context.Context, now time.Time) ([]User, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, phone, timezone, instructions, active, next_call_at, created_at
		FROM users
		WHERE active AND next_call_at IS NOT NULL AND next_call_at <= $1
		ORDER BY next_call_at`, now)
	if err != nil {
		return nil, fmt.Errorf("query due users: %w", err)
	}
	defer rows.Close()

	var due []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Name, &user.Phone, &user.Timezone,
			&user.Instructions, &user.Active, &user.NextCallAt, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan due user: %w", err)
		}
		due = append(due, user)
	}
	return due, rows.Err()
}

func (p *Postgres) SetUserActive(ctx context.Context, id string, active bool) error {
	tag, err := p.pool.Exec(ctx, `UPDATE users SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set user %s active: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) SetUserNextCall(ctx context.Context, id string, at time.Time) error {
	tag, err := p.pool.Exec(ctx, `UPDATE users SET next_call_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("set user %s next call: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) UpsertCallLog(ctx context.Context, log CallLog) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO call_logs (call_sid, user_id, from_number, to_number, mode, outcome, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (call_sid) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			from_number = EXCLUDED.from_number,
			to_number = EXCLUDED.to_number,
			mode = EXCLUDED.mode,
			outcome = EXCLUDED.outcome,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at`,
		log.CallSID, log.UserID, log.From, log.To, log.Mode, log.Outcome,
		nullableTime(log.StartedAt), nullableTime(log.EndedAt))
	if err != nil {
		return fmt.Errorf("upsert call log %s: %w", log.CallSID, err)
	}
	return nil
}

func (p *Postgres) UpdateCallOutcome(ctx context.Context, callSID, outcome string, at time.Time) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO call_logs (call_sid, outcome, ended_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (call_sid) DO UPDATE SET outcome = EXCLUDED.outcome, ended_at = EXCLUDED.ended_at`,
		callSID, outcome, at)
	if err != nil {
		return fmt.Errorf("update call %s outcome: %w", callSID, err)
	}
	return nil
}

func (p *Postgres) GetCallLog(ctx context.Context, callSID string) (CallLog, error) {
	var log CallLog
	var started, ended *time.Time
	err := p.pool.QueryRow(ctx, `
		SELECT call_sid, COALESCE(user_id, ''), COALESCE(from_number, ''), COALESCE(to_number, ''),
		       COALESCE(mode, ''), COALESCE(outcome, ''), started_at, ended_at
		FROM call_logs WHERE call_sid = $1`, callSID).
		Scan(&log.CallSID, &log.UserID, &log.From, &log.To, &log.Mode, &log.Outcome, &started, &ended)
	if errors.Is(err, pgx.ErrNoRows) {
		return CallLog{}, ErrNotFound
	}
	if err != nil {
		return CallLog{}, fmt.Errorf("get call log %s: %w", callSID, err)
	}
	if started != nil {
		log.StartedAt = *started
	}
	if ended != nil {
		log.EndedAt = *ended
	}
	return log, nil
}

func (p *Postgres) Close() { p.pool.Close() }

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
