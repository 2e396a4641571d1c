// Package orchestrator drives one gift purchase from intent to terminal
// outcome: invoice issuance, pre-checkout approval, and post-payment
// fulfillment. It is the sole writer of the ledger and the only component
// with side effects against the payment/delivery API.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmkorneev/go-gift-relay/internal/awsx"
	"github.com/dmkorneev/go-gift-relay/internal/giftcatalog"
	"github.com/dmkorneev/go-gift-relay/internal/ledger"
	"github.com/dmkorneev/go-gift-relay/internal/payload"
	"github.com/dmkorneev/go-gift-relay/internal/session"
)

var (
	// ErrUserMismatch indicates a confirmed payload crafted for one user
	// being redeemed by another.
	ErrUserMismatch = errors.New("payload user does not match paying user")
	// ErrInvoiceAPI indicates the platform rejected invoice creation.
	ErrInvoiceAPI = errors.New("invoice creation failed")
	// ErrDeliveryAPI indicates the delivery call failed after payment
	// capture. The payment is not reversed; the attempt is reported for
	// manual reconciliation.
	ErrDeliveryAPI = errors.New("gift delivery failed")
)

// PaymentAPI is the outbound payment surface of the platform.
type PaymentAPI interface {
	SendInvoice(ctx context.Context, chatID int64, title, description string, payload []byte, currency string, amount int64) error
	AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool, errorMessage string) error
}

// DeliveryAPI is the outbound gift-delivery surface of the platform.
type DeliveryAPI interface {
	SendGift(ctx context.Context, userID int64, giftID string, text *string) error
}

// ReconcilePublisher receives captured-but-undelivered payment events.
type ReconcilePublisher interface {
	Publish(ctx context.Context, ev awsx.ReconcileEvent) error
}

// FulfillmentMetrics counts fulfillment outcomes.
type FulfillmentMetrics interface {
	CountFulfillment(ctx context.Context, outcome string)
}

// Config groups the orchestrator's dependencies. Reconcile and Metrics are
// optional.
type Config struct {
	Catalog   *giftcatalog.Catalog
	Sessions  *session.Manager
	Ledger    ledger.Store
	Payments  PaymentAPI
	Delivery  DeliveryAPI
	Reconcile ReconcilePublisher
	Metrics   FulfillmentMetrics
}

// Orchestrator serializes all session mutation and fulfillment per user;
// flows for different users proceed concurrently.
type Orchestrator struct {
	catalog   *giftcatalog.Catalog
	sessions  *session.Manager
	ledger    ledger.Store
	payments  PaymentAPI
	delivery  DeliveryAPI
	reconcile ReconcilePublisher
	metrics   FulfillmentMetrics

	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex
}

// New builds an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		catalog:   cfg.Catalog,
		sessions:  cfg.Sessions,
		ledger:    cfg.Ledger,
		payments:  cfg.Payments,
		delivery:  cfg.Delivery,
		reconcile: cfg.Reconcile,
		metrics:   cfg.Metrics,
		userLocks: make(map[int64]*sync.Mutex),
	}
}

// userLock returns the per-user mutex, creating it on first use.
func (o *Orchestrator) userLock(userID int64) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		o.userLocks[userID] = l
	}
	return l
}

// Result is the observable outcome of a fulfillment attempt.
type Result struct {
	Delivered bool
	NewCount  int
	GiftKey   string
}

// SelectGift starts a purchase session. A prior unterminated selection is
// discarded without side effects.
func (o *Orchestrator) SelectGift(userID int64, giftKey string) error {
	l := o.userLock(userID)
	l.Lock()
	defer l.Unlock()
	return o.sessions.SelectGift(userID, giftKey)
}

// IssueInvoice snapshots the user's session with the given note and issues a
// Stars invoice whose payload encodes the full purchase intent. The session
// is not cleared; it survives until a terminal payment outcome.
func (o *Orchestrator) IssueInvoice(ctx context.Context, userID int64, note *string) error {
	l := o.userLock(userID)
	l.Lock()
	defer l.Unlock()

	intent, err := o.sessions.AttachNote(userID, note)
	if err != nil {
		return err
	}
	gift, err := o.catalog.Resolve(intent.GiftKey)
	if err != nil {
		return err
	}
	raw, err := payload.Encode(intent.UserID, intent.GiftKey, intent.Note)
	if err != nil {
		return err
	}

	title := "Gift purchase: " + gift.DisplayName
	description := fmt.Sprintf("A Telegram gift for %d stars", giftcatalog.PriceStars)
	if err := o.payments.SendInvoice(ctx, intent.UserID, title, description, raw, giftcatalog.Currency, giftcatalog.PriceStars); err != nil {
		return fmt.Errorf("%w: %v", ErrInvoiceAPI, err)
	}
	return nil
}

// ValidatePreCheckout approves a pre-checkout query. Virtual gifts have no
// stock or fraud constraint, so it always approves; the method exists so a
// future check has a single insertion point. It performs exactly one bounded
// API call, keeping within the platform's ack window.
func (o *Orchestrator) ValidatePreCheckout(ctx context.Context, queryID string) error {
	if err := o.payments.AnswerPreCheckoutQuery(ctx, queryID, true, ""); err != nil {
		return fmt.Errorf("answer pre-checkout: %w", err)
	}
	return nil
}

// Fulfill processes a confirmed payment. Steps run in strict order: decode
// the payload, verify the paying user, resolve the gift, deliver, then record
// the operation in the ledger. Each step's failure is terminal for the
// attempt, never for the process. Once the attempt reaches the delivery
// branch the session is cleared regardless of outcome, so a fresh selection
// can begin cleanly.
func (o *Orchestrator) Fulfill(ctx context.Context, rawPayload []byte, payingUserID int64, payerName string) (Result, error) {
	l := o.userLock(payingUserID)
	l.Lock()
	defer l.Unlock()

	attemptID := uuid.NewString()

	p, err := payload.Decode(rawPayload)
	if err != nil {
		log.Printf("[fulfill %s] user=%d corrupt payload: %v", attemptID, payingUserID, err)
		return Result{}, err
	}
	if p.UserID != payingUserID {
		log.Printf("[fulfill %s] payload user=%d paid by user=%d", attemptID, p.UserID, payingUserID)
		return Result{}, ErrUserMismatch
	}
	// re-check the key: the payload crossed the payment platform and cannot
	// be trusted just because issuance validated it
	gift, err := o.catalog.Resolve(p.GiftKey)
	if err != nil {
		log.Printf("[fulfill %s] user=%d unknown gift %q in payload", attemptID, payingUserID, p.GiftKey)
		return Result{}, err
	}

	// terminal from here on: clear the session whichever way delivery goes
	defer o.sessions.Clear(payingUserID)

	if err := o.delivery.SendGift(ctx, payingUserID, gift.DeliveryID, p.Note); err != nil {
		// payment captured, gift not delivered: log everything an operator
		// needs and hand the event to the reconcile queue; the ledger stays
		// untouched
		log.Printf("[fulfill %s] delivery failed after capture: user=%d gift=%s payload=%s err=%v",
			attemptID, payingUserID, p.GiftKey, rawPayload, err)
		o.publishReconcile(ctx, attemptID, payingUserID, p.GiftKey, rawPayload, err)
		o.count(ctx, "delivery_failed")
		return Result{GiftKey: p.GiftKey}, fmt.Errorf("%w: %v", ErrDeliveryAPI, err)
	}

	newCount, err := o.ledger.IncrementOperations(ctx, payingUserID, payerName)
	if err != nil {
		log.Printf("[fulfill %s] gift delivered but ledger update failed: user=%d gift=%s err=%v",
			attemptID, payingUserID, p.GiftKey, err)
		o.count(ctx, "ledger_failed")
		return Result{Delivered: true, GiftKey: p.GiftKey}, fmt.Errorf("record operation: %w", err)
	}

	log.Printf("[fulfill %s] delivered gift=%s user=%d operations=%d", attemptID, p.GiftKey, payingUserID, newCount)
	o.count(ctx, "delivered")
	return Result{Delivered: true, NewCount: newCount, GiftKey: p.GiftKey}, nil
}

func (o *Orchestrator) publishReconcile(ctx context.Context, attemptID string, userID int64, giftKey string, rawPayload []byte, cause error) {
	if o.reconcile == nil {
		return
	}
	ev := awsx.ReconcileEvent{
		CorrelationID: attemptID,
		UserID:        userID,
		GiftKey:       giftKey,
		RawPayload:    string(rawPayload),
		Reason:        cause.Error(),
		OccurredAt:    time.Now().UTC(),
	}
	if err := o.reconcile.Publish(ctx, ev); err != nil {
		log.Printf("[fulfill %s] publish reconcile event: %v", attemptID, err)
	}
}

func (o *Orchestrator) count(ctx context.Context, outcome string) {
	if o.metrics == nil {
		return
	}
	o.metrics.CountFulfillment(ctx, outcome)
}
