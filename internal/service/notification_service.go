package service

import (
	"context"

	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/internal/repository"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/sirupsen/logrus"
)

// NotificationSink surfaces job outcomes to the owning user.
type NotificationSink interface {
	Notify(ctx context.Context, n *models.Notification) error
}

type notificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) NotificationSink {
	return &notificationService{repo: repo}
}

func (s *notificationService) Notify(ctx context.Context, n *models.Notification) error {
	if n.Priority == "" {
		n.Priority = models.PriorityMedium
	}
	if n.Type == "" {
		n.Type = models.NotificationInfo
	}

	id, err := s.repo.Create(ctx, n)
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithFields(logrus.Fields{
			"user_id":  n.UserID,
			"category": n.Category,
		}).Error("failed to store notification")
		return err
	}
	n.ID = id
	return nil
}
