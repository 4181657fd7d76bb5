package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/pkg/logger"
)

type AppCredentialRepository interface {
	GetByID(ctx context.Context, id string) (*models.AppCredential, error)
}

type appCredentialRepository struct {
	db *sql.DB
}

func NewAppCredentialRepository(db *sql.DB) AppCredentialRepository {
	return &appCredentialRepository{db: db}
}

func (r *appCredentialRepository) GetByID(ctx context.Context, id string) (*models.AppCredential, error) {
	query := `SELECT id, user_id, name, client_id, client_secret, consumer_key, consumer_secret, created_at
		FROM twitter_apps WHERE id = $1`

	var app models.AppCredential
	err := r.db.QueryRowContext(ctx, query, id).Scan(&app.ID, &app.UserID, &app.Name, &app.ClientID,
		&app.ClientSecret, &app.ConsumerKey, &app.ConsumerSecret, &app.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.FromContext(ctx).WithError(err).Warn("get app credential")
		return nil, err
	}
	return &app, nil
}
