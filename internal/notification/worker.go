package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"

	"campus-queue-backend/config"
	"campus-queue-backend/internal/dispatch"
	"campus-queue-backend/internal/model"
)

// PushSender defines the interface for sending a web push notification.
type PushSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of PushSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// EmailSender defines the interface for sending a notification email.
type EmailSender interface {
	Send(to, subject, body string) error
}

// GomailSender sends mail over SMTP.
type GomailSender struct {
	from   string
	dialer *gomail.Dialer
}

// NewGomailSender creates an SMTP-backed email sender.
func NewGomailSender(cfg *config.SMTPConfig) *GomailSender {
	return &GomailSender{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Send sends a single email.
func (s *GomailSender) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return s.dialer.DialAndSend(m)
}

// WorkerPool consumes domain events and delivers the queue-joined and
// queue-finished notifications. Delivery is fully decoupled from the state
// transition that produced the event: failures are logged and swallowed,
// never surfaced to the dispatching caller.
type WorkerPool struct {
	size    int
	jobs    chan dispatch.Event
	db      *gorm.DB
	webpush *webpush.Options
	push    PushSender
	email   EmailSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, email EmailSender) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan dispatch.Event, size*16),
		db:      db,
		webpush: webpushOptions,
		push:    &WebPushSender{},
		email:   email,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case ev := <-wp.jobs:
			wp.process(ctx, ev)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Notify enqueues an event without blocking the caller. If the buffer is
// full the event is dropped; notifications are best-effort by contract.
func (wp *WorkerPool) Notify(ev dispatch.Event) {
	select {
	case wp.jobs <- ev:
	default:
		log.Printf("Notification queue full, dropping %s event for ticket %d", ev.Type, ev.TicketID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan dispatch.Event {
	return wp.jobs
}

// process delivers the email and web push messages for one event.
func (wp *WorkerPool) process(ctx context.Context, ev dispatch.Event) {
	var queue model.Queue
	queueLabel := fmt.Sprintf("queue %d", ev.QueueID)
	if err := wp.db.WithContext(ctx).First(&queue, ev.QueueID).Error; err != nil {
		log.Printf("Error fetching queue %d: %v", ev.QueueID, err)
	} else {
		queueLabel = queue.Name
	}

	subject, body := composeEmail(ev.Type, queueLabel, queue.Location)

	if ev.Contact != "" && wp.email != nil {
		if err := wp.email.Send(ev.Contact, subject, body); err != nil {
			log.Printf("Error sending %s email to %s: %v", ev.Type, ev.Contact, err)
		}
	}

	wp.sendPushForQueue(ctx, ev.QueueID, []byte(body))
}

// composeEmail renders the notification text for an event type.
func composeEmail(t dispatch.EventType, queueName, location string) (subject, body string) {
	switch t {
	case dispatch.EventCompleted:
		subject = fmt.Sprintf("You're all done at %s", queueName)
		body = fmt.Sprintf("Your visit to %s (%s) is complete. Thanks for waiting!", queueName, location)
	default:
		subject = fmt.Sprintf("You've joined %s", queueName)
		body = fmt.Sprintf("You checked in to %s (%s). Watch the display for your ticket number.", queueName, location)
	}
	return subject, body
}

// sendPushForQueue fetches subscriptions bound to the queue and notifies them.
func (wp *WorkerPool) sendPushForQueue(ctx context.Context, queueID int64, payload []byte) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_queue_mapping sqm ON sqm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("sqm.queue_id = ?", queueID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for queue %d: %v", queueID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d push notifications for queue %d", len(subscriptions), queueID)
	for _, sub := range subscriptions {
		wp.sendPush(ctx, sub, payload)
	}
}

// sendPush sends a single web push notification.
func (wp *WorkerPool) sendPush(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.push.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
