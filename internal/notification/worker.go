package notification

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"kilnworks-backend/internal/firing"
	"kilnworks-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubscriptionStore is the part of the store the workers read and prune.
type SubscriptionStore interface {
	SubscriptionsForKiln(ctx context.Context, kilnID int64) ([]model.KilnSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Job describes one completed firing to announce.
type Job struct {
	StudioID   string `json:"studioId"`
	KilnID     int64  `json:"kilnId"`
	KilnName   string `json:"kilnName"`
	FiringID   string `json:"firingId"`
	FiringName string `json:"firingName"`
}

// Payload is the JSON body pushed to subscribed browsers.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Job
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Job
	store   SubscriptionStore
	webpush *webpush.Options
	sender  NotificationSender
	logger  *zap.Logger
}

var _ firing.CompletionNotifier = (*WorkerPool)(nil)

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, store SubscriptionStore, webpushOptions *webpush.Options, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, size*16),
		store:   store,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		logger:  logger.Named("notification"),
	}
}

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Debug("worker started", zap.Int("worker", id))
	for {
		select {
		case job := <-wp.jobs:
			wp.logger.Debug("processing job", zap.Int("worker", id), zap.Int64("kiln_id", job.KilnID), zap.String("firing_id", job.FiringID))
			wp.sendNotificationsForKiln(ctx, job)
		case <-ctx.Done():
			wp.logger.Debug("worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues a job. It never blocks; a full queue drops the job.
func (wp *WorkerPool) Dispatch(job Job) bool {
	select {
	case wp.jobs <- job:
		return true
	default:
		wp.logger.Warn("notification queue full, dropping job",
			zap.Int64("kiln_id", job.KilnID), zap.String("firing_id", job.FiringID))
		return false
	}
}

// FiringCompleted queues a completion notice for the kiln's subscribers.
func (wp *WorkerPool) FiringCompleted(kiln model.Kiln, f model.Firing) {
	wp.Dispatch(Job{
		StudioID:   kiln.StudioID,
		KilnID:     kiln.ID,
		KilnName:   kiln.Name,
		FiringID:   f.ID,
		FiringName: f.Name,
	})
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Job {
	return wp.jobs
}

func (wp *WorkerPool) sendNotificationsForKiln(ctx context.Context, job Job) {
	subscriptions, err := wp.store.SubscriptionsForKiln(ctx, job.KilnID)
	if err != nil {
		wp.logger.Error("fetching subscriptions failed", zap.Int64("kiln_id", job.KilnID), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(newPayload(job))
	if err != nil {
		wp.logger.Error("encoding payload failed", zap.Error(err))
		return
	}

	wp.logger.Info("sending notifications", zap.Int("count", len(subscriptions)), zap.Int64("kiln_id", job.KilnID))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func newPayload(job Job) Payload {
	kiln := job.KilnName
	if kiln == "" {
		kiln = "Kiln"
	}
	name := job.FiringName
	if name == "" {
		name = "Firing"
	}
	return Payload{
		Title: kiln + " is ready to unload",
		Body:  name + " has completed.",
		Job:   job,
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.KilnSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Warn("sending notification failed", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.logger.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.logger.Error("deleting expired subscription failed", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
