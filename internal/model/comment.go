package model

import "time"

type Comment struct {
	ID        int64          `json:"id"`
	ProjectID int64          `json:"projectId"`
	UserID    int64          `json:"userId"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"createdAt"`
	Author    *UserSummary   `json:"author,omitempty"`
	Replies   []CommentReply `json:"replies"`
}

type CommentReply struct {
	ID        int64        `json:"id"`
	UserID    int64        `json:"userId"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"createdAt"`
	Author    *UserSummary `json:"author,omitempty"`
}
