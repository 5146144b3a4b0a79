package model

import "time"

// SearchResult is the chunk projection returned by every retrieval mode.
// Distance is 0 when no vector comparison was performed (tag-only search).
type SearchResult struct {
	ChunkID    string  `json:"chunk_id" db:"id"`
	KBID       string  `json:"kb_id" db:"kb_id"`
	DocumentID string  `json:"document_id" db:"document_id"`
	ChunkIndex int     `json:"chunk_index" db:"chunk_index"`
	Content    string  `json:"content" db:"content"`
	Distance   float64 `json:"distance" db:"distance"`

	Tag1 *string `json:"tag1" db:"tag_text1"`
	Tag2 *string `json:"tag2" db:"tag_text2"`
	Tag3 *string `json:"tag3" db:"tag_text3"`
	Tag4 *string `json:"tag4" db:"tag_text4"`
	Tag5 *string `json:"tag5" db:"tag_text5"`
	Tag6 *string `json:"tag6" db:"tag_text6"`
	Tag7 *string `json:"tag7" db:"tag_text7"`

	Num1 *float64 `json:"num1" db:"tag_num1"`
	Num2 *float64 `json:"num2" db:"tag_num2"`
	Num3 *float64 `json:"num3" db:"tag_num3"`
	Num4 *float64 `json:"num4" db:"tag_num4"`
	Num5 *float64 `json:"num5" db:"tag_num5"`

	Date1 *time.Time `json:"date1" db:"tag_date1"`
	Date2 *time.Time `json:"date2" db:"tag_date2"`

	Bool1 *bool `json:"bool1" db:"tag_bool1"`
	Bool2 *bool `json:"bool2" db:"tag_bool2"`
	Bool3 *bool `json:"bool3" db:"tag_bool3"`
}
