// Package model contains domain models passed between layers.
// JSON field names match the competition site's static feeds.
package model

import "time"

// Example is a sample input/output pair shown with a challenge.
type Example struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	Explanation string `json:"explanation,omitempty"`
}

// Challenge is a published golf problem. Only ID and Difficulty affect scoring.
type Challenge struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Difficulty   int       `json:"difficulty"` // D-value, the maximum attainable score
	InputFormat  string    `json:"input_format"`
	OutputFormat string    `json:"output_format"`
	Examples     []Example `json:"examples"`
	DetailURL    string    `json:"detail_url"`
	RankingURL   string    `json:"ranking_url"`
}

// Submission is one accepted attempt. Score is fixed at acceptance time.
type Submission struct {
	ID          string    `json:"id"`
	ChallengeID int       `json:"challenge_id"`
	Handle      string    `json:"handle"`
	Code        string    `json:"code"`
	ByteCount   int       `json:"byte_count"`
	Score       int       `json:"score"`
	SubmittedAt time.Time `json:"submitted_at"`
	Rank        *int      `json:"rank,omitempty"`
}

// RankingEntry is a submitter's best submission on one challenge.
type RankingEntry struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	ByteCount   int       `json:"byte_count"`
	Score       int       `json:"score"`
	Rank        int       `json:"rank"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// LadderEntry aggregates a submitter's best scores across challenges.
type LadderEntry struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	TotalScore  int    `json:"total_score"`
	Rank        int    `json:"rank"`
	SolvedCount int    `json:"solved_count"`
}
