package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"propel/internal/apperr"
	"propel/internal/model"
)

type CommentRepository struct {
	db     Querier
	logger *zap.Logger
}

func NewCommentRepository(db Querier, logger *zap.Logger) *CommentRepository {
	return &CommentRepository{db: db, logger: logger}
}

// ListByProject returns comments newest first, each with its replies in posting order.
func (r *CommentRepository) ListByProject(ctx context.Context, projectID int64) ([]model.Comment, error) {
	rows, err := r.db.Query(ctx, `
        SELECT c.id, c.project_id, c.user_id, c.content, c.created_at, u.name, u.profile_image
        FROM comments c
        JOIN users u ON u.id = c.user_id
        WHERE c.project_id = $1
        ORDER BY c.created_at DESC, c.id DESC
    `, projectID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	index := map[int64]int{}
	for rows.Next() {
		var c model.Comment
		var author model.UserSummary
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.UserID, &c.Content, &c.CreatedAt, &author.Name, &author.ProfileImage); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		author.ID = c.UserID
		c.Author = &author
		c.Replies = []model.CommentReply{}
		index[c.ID] = len(comments)
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return comments, nil
	}

	replyRows, err := r.db.Query(ctx, `
        SELECT cr.id, cr.comment_id, cr.user_id, cr.content, cr.created_at, u.name, u.profile_image
        FROM comment_replies cr
        JOIN comments c ON c.id = cr.comment_id
        JOIN users u ON u.id = cr.user_id
        WHERE c.project_id = $1
        ORDER BY cr.created_at ASC, cr.id ASC
    `, projectID)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	defer replyRows.Close()

	for replyRows.Next() {
		var reply model.CommentReply
		var commentID int64
		var author model.UserSummary
		if err := replyRows.Scan(&reply.ID, &commentID, &reply.UserID, &reply.Content, &reply.CreatedAt, &author.Name, &author.ProfileImage); err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		author.ID = reply.UserID
		reply.Author = &author
		if i, ok := index[commentID]; ok {
			comments[i].Replies = append(comments[i].Replies, reply)
		}
	}
	return comments, replyRows.Err()
}

func (r *CommentRepository) Create(ctx context.Context, c *model.Comment) error {
	err := r.db.QueryRow(ctx, `
        INSERT INTO comments (project_id, user_id, content)
        VALUES ($1, $2, $3)
        RETURNING id, created_at
    `, c.ProjectID, c.UserID, c.Content).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	if c.Replies == nil {
		c.Replies = []model.CommentReply{}
	}
	return nil
}

func (r *CommentRepository) GetByID(ctx context.Context, id int64) (*model.Comment, error) {
	var c model.Comment
	err := r.db.QueryRow(ctx, `
        SELECT id, project_id, user_id, content, created_at FROM comments WHERE id = $1
    `, id).Scan(&c.ID, &c.ProjectID, &c.UserID, &c.Content, &c.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "comment not found")
	}
	return &c, nil
}

func (r *CommentRepository) AddReply(ctx context.Context, commentID int64, reply *model.CommentReply) error {
	err := r.db.QueryRow(ctx, `
        INSERT INTO comment_replies (comment_id, user_id, content)
        VALUES ($1, $2, $3)
        RETURNING id, created_at
    `, commentID, reply.UserID, reply.Content).Scan(&reply.ID, &reply.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}
	return nil
}

func (r *CommentRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("comment not found")
	}
	return nil
}
