package database

import (
	"context"
	"database/sql"

	"github.com/Past-Tang/x/internal/models"
)

// PostgresRepliedTweetRepository tracks which account replied to which
// tweet so reply fan-out never repeats across checks.
type PostgresRepliedTweetRepository struct {
	db *sql.DB
}

func NewPostgresRepliedTweetRepository(db *sql.DB) *PostgresRepliedTweetRepository {
	return &PostgresRepliedTweetRepository{db: db}
}

func (r *PostgresRepliedTweetRepository) Exists(ctx context.Context, targetUserID, tweetID string, accountID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM replied_tweets
			WHERE target_user_id = $1 AND tweet_id = $2 AND account_id = $3
		)
	`, targetUserID, tweetID, accountID).Scan(&exists)
	return exists, err
}

func (r *PostgresRepliedTweetRepository) Insert(ctx context.Context, replied *models.RepliedTweet) error {
	// ON CONFLICT keeps a duplicate insert harmless; the unique triple
	// is the real dedup guard.
	query := `
		INSERT INTO replied_tweets (target_user_id, tweet_id, account_id, reply_tweet_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (target_user_id, tweet_id, account_id) DO NOTHING
		RETURNING id, replied_at
	`

	err := r.db.QueryRowContext(ctx, query,
		replied.TargetUserID,
		replied.TweetID,
		replied.AccountID,
		nullString(replied.ReplyTweetID),
	).Scan(&replied.ID, &replied.RepliedAt)
	if err == sql.ErrNoRows {
		// Conflict path: row already existed.
		return nil
	}
	return err
}
