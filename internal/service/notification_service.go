package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/naufal-dev/fyp-api/internal/models"
	appErrors "github.com/naufal-dev/fyp-api/pkg/errors"
	"github.com/naufal-dev/fyp-api/pkg/jobs"
)

type notificationRepo interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
	CountUnread(ctx context.Context, userID string) (int, error)
}

// NotificationService persists notifications and pushes them to the
// dashboard over Redis pub/sub. Dispatch goes through the background
// queue so the triggering operation never blocks on, or fails because
// of, notification delivery.
type NotificationService struct {
	repo   notificationRepo
	redis  *redis.Client
	queue  *jobs.Queue
	logger *zap.Logger
}

var _ Notifier = (*NotificationService)(nil)

// NewNotificationService builds the service and its dispatch queue. Call
// Start before dispatching and Stop on shutdown.
func NewNotificationService(repo notificationRepo, redisClient *redis.Client, cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{repo: repo, redis: redisClient, logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.handleJob, cfg)
	return s
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Dispatch enqueues a notification. Errors are logged and swallowed;
// callers never observe delivery failures.
func (s *NotificationService) Dispatch(n models.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	job := jobs.Job{ID: n.ID, Type: "notification", Payload: n}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification", zap.String("user_id", n.UserID), zap.Error(err))
	}
}

func (s *NotificationService) handleJob(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.repo.Create(ctx, &n); err != nil {
		return err
	}
	s.publish(ctx, n)
	return nil
}

// publish pushes the notification onto the user's Redis channel for
// live dashboard updates. Best effort.
func (s *NotificationService) publish(ctx context.Context, n models.Notification) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		s.logger.Warn("failed to marshal notification", zap.String("id", n.ID), zap.Error(err))
		return
	}
	channel := fmt.Sprintf("user_notifications:%s", n.UserID)
	if err := s.redis.Publish(ctx, channel, payload).Err(); err != nil {
		s.logger.Warn("failed to publish notification", zap.String("channel", channel), zap.Error(err))
	}
}

// List returns the newest notifications for the user.
func (s *NotificationService) List(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	notifications, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// MarkRead flags one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead flags every unread notification for the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return nil
}

// UnreadCount returns the user's unread notification count.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}
