package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/pkg/logger"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) (string, error)
}

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) (string, error) {
	var metadata []byte
	if len(n.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(n.Metadata); err != nil {
			return "", err
		}
	}

	query := `
		INSERT INTO notifications (user_id, title, message, type, priority, category, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	var id string
	err := r.db.QueryRowContext(ctx, query, n.UserID, n.Title, n.Message, n.Type, n.Priority, n.Category,
		metadata).Scan(&id)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("create notification")
		return "", err
	}
	return id, nil
}
