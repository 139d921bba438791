package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type pollArchive struct {
	db *sql.DB
}

func NewPollArchive(db *sql.DB) ports.PollArchive {
	return &pollArchive{
		db: db,
	}
}

// Append is idempotent on the poll id, so a retried write after a lost
// commit acknowledgement does not fail.
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

	queryPoll := `
		INSERT INTO poll_archive (id, question, total_votes, correct_option_index, reason, created_at, end_time, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := tx.ExecContext(ctx, queryPoll,
		poll.ID, poll.Question, poll.TotalVotes, correct, string(poll.Reason),
		poll.CreatedAt, poll.EndTime, poll.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert archived poll: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	queryOption := `
		INSERT INTO poll_archive_options (poll_id, position, text, votes, percentage)
		VALUES ($1, $2, $3, $4, $5)
	`
	stmt, err := tx.PrepareContext(ctx, queryOption)
	if err != nil {
		return fmt.Errorf("failed to prepare option statement: %w", err)
	}
	defer stmt.Close()

	for i, opt := range poll.Options {
		_, err = stmt.ExecContext(ctx, poll.ID, i, opt.Text, opt.Votes, opt.Percentage)
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
	query := `
		SELECT id, question, total_votes, correct_option_index, reason, created_at, end_time, ended_at
		FROM poll_archive
		ORDER BY ended_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived polls: %w", err)
	}
	defer rows.Close()

	var polls []*domain.ArchivedPoll
	for rows.Next() {
		var (
			poll    domain.ArchivedPoll
			correct sql.NullInt64
			reason  string
		)
		if err := rows.Scan(&poll.ID, &poll.Question, &poll.TotalVotes, &correct, &reason,
			&poll.CreatedAt, &poll.EndTime, &poll.EndedAt); err != nil {
			return nil, fmt.Errorf("failed to scan archived poll: %w", err)
		}
		poll.Reason = domain.CloseReason(reason)
		if correct.Valid {
			idx := int(correct.Int64)
			poll.CorrectOptionIndex = &idx
		}
		polls = append(polls, &poll)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archived polls: %w", err)
	}

	for _, poll := range polls {
		options, err := r.fetchOptions(ctx, poll.ID)
		if err != nil {
			return nil, err
		}
		poll.Options = options
	}

	return polls, nil
}

func (r *pollArchive) fetchOptions(ctx context.Context, pollID uuid.UUID) ([]domain.ArchivedOption, error) {
	queryOptions := `
		SELECT text, votes, percentage
		FROM poll_archive_options
		WHERE poll_id = $1
		ORDER BY position
	`
	rows, err := r.db.QueryContext(ctx, queryOptions, pollID)
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
