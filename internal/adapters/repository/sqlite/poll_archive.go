package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type pollArchive struct {
	db *sql.DB
}

func NewPollArchive(db *sql.DB) ports.PollArchive {
	return &pollArchive{db: db}
}

func (r *pollArchive) Append(ctx context.Context, poll *domain.ArchivedPoll) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var correct sql.NullInt64
	if poll.CorrectOptionIndex != nil {
		correct = sql.NullInt64{Int64: int64(*poll.CorrectOptionIndex), Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO poll_archive (id, question, total_votes, correct_option_index, reason, created_at, end_time, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		poll.ID.String(), poll.Question, poll.TotalVotes, correct, string(poll.Reason),
		poll.CreatedAt.UnixNano(), poll.EndTime.UnixNano(), poll.EndedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert archived poll: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	for i, opt := range poll.Options {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO poll_archive_options (poll_id, position, text, votes, percentage)
			VALUES (?, ?, ?, ?, ?)`,
			poll.ID.String(), i, opt.Text, opt.Votes, opt.Percentage,
		)
		if err != nil {
			return fmt.Errorf("failed to insert option: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *pollArchive) ListEnded(ctx context.Context) ([]*domain.ArchivedPoll, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, question, total_votes, correct_option_index, reason, created_at, end_time, ended_at
		FROM poll_archive
		ORDER BY ended_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived polls: %w", err)
	}
	defer rows.Close()

	var polls []*domain.ArchivedPoll
	for rows.Next() {
		var (
			poll                      domain.ArchivedPoll
			id, reason                string
			correct                   sql.NullInt64
			createdAt, endTime, ended int64
		)
		if err := rows.Scan(&id, &poll.Question, &poll.TotalVotes, &correct, &reason, &createdAt, &endTime, &ended); err != nil {
			return nil, fmt.Errorf("failed to scan archived poll: %w", err)
		}
		if poll.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid archived poll id %q: %w", id, err)
		}
		if correct.Valid {
			idx := int(correct.Int64)
			poll.CorrectOptionIndex = &idx
		}
		poll.Reason = domain.CloseReason(reason)
		poll.CreatedAt = fromUnixNano(createdAt)
		poll.EndTime = fromUnixNano(endTime)
		poll.EndedAt = fromUnixNano(ended)
		polls = append(polls, &poll)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archived polls: %w", err)
	}
	// Close before issuing option queries; the pool holds one connection.
	rows.Close()

	for _, poll := range polls {
		if poll.Options, err = r.fetchOptions(ctx, poll.ID); err != nil {
			return nil, err
		}
	}
	return polls, nil
}

func (r *pollArchive) fetchOptions(ctx context.Context, pollID uuid.UUID) ([]domain.ArchivedOption, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT text, votes, percentage
		FROM poll_archive_options
		WHERE poll_id = ?
		ORDER BY position`, pollID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get archived options: %w", err)
	}
	defer rows.Close()

	var options []domain.ArchivedOption
	for rows.Next() {
		var opt domain.ArchivedOption
		if err := rows.Scan(&opt.Text, &opt.Votes, &opt.Percentage); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating options: %w", err)
	}
	return options, nil
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
