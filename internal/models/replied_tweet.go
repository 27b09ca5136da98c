package models

import (
	"context"
	"time"
)

// RepliedTweet marks that an account has already replied to a tweet,
// deduplicating reply fan-out across checks. The triple
// (target_user_id, tweet_id, account_id) is unique.
type RepliedTweet struct {
	ID           int64     `json:"id"`
	TargetUserID string    `json:"target_user_id"`
	TweetID      string    `json:"tweet_id"`
	AccountID    int64     `json:"account_id"`
	ReplyTweetID string    `json:"reply_tweet_id,omitempty"`
	RepliedAt    time.Time `json:"replied_at"`
}

// RepliedTweetRepository defines dedup bookkeeping operations.
type RepliedTweetRepository interface {
	// Exists reports whether the account already replied to the tweet.
	Exists(ctx context.Context, targetUserID, tweetID string, accountID int64) (bool, error)

	Insert(ctx context.Context, replied *RepliedTweet) error
}
