// Package bot maps incoming Telegram updates onto the purchase flow and
// renders menus, prompts, and outcome messages.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/dmkorneev/go-gift-relay/internal/giftcatalog"
	"github.com/dmkorneev/go-gift-relay/internal/ledger"
	"github.com/dmkorneev/go-gift-relay/internal/orchestrator"
	"github.com/dmkorneev/go-gift-relay/internal/payload"
	"github.com/dmkorneev/go-gift-relay/internal/session"
	"github.com/dmkorneev/go-gift-relay/internal/telegram"
)

const (
	btnProfile = "👤 Profile"
	btnBuyGift = "🎁 Buy a gift"
	btnBack    = "🔙 Back"
	btnNoNote  = "✏️ No note"

	cbGiftPrefix = "gift_"
	cbNoNote     = "no_note"
)

// Messenger is the outbound chat surface used to render replies.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup interface{}) (telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup *telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, queryID string) error
}

// Config groups the router's dependencies.
type Config struct {
	API      Messenger
	Catalog  *giftcatalog.Catalog
	Sessions *session.Manager
	Ledger   ledger.Store
	Flow     *orchestrator.Orchestrator
}

// Router dispatches updates to handlers.
type Router struct {
	api      Messenger
	catalog  *giftcatalog.Catalog
	sessions *session.Manager
	ledger   ledger.Store
	flow     *orchestrator.Orchestrator
}

// New builds a Router from cfg.
func New(cfg Config) *Router {
	return &Router{
		api:      cfg.API,
		catalog:  cfg.Catalog,
		sessions: cfg.Sessions,
		ledger:   cfg.Ledger,
		flow:     cfg.Flow,
	}
}

// Dispatch routes one update. All per-user errors are converted into chat
// messages here; nothing propagates to crash the process.
func (r *Router) Dispatch(ctx context.Context, upd telegram.Update) {
	switch {
	case upd.PreCheckoutQuery != nil:
		r.handlePreCheckout(ctx, upd.PreCheckoutQuery)
	case upd.CallbackQuery != nil:
		r.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		r.handleMessage(ctx, upd.Message)
	}
}

func (r *Router) handleMessage(ctx context.Context, m *telegram.Message) {
	if m.SuccessfulPayment != nil {
		r.handlePayment(ctx, m)
		return
	}
	if m.From == nil {
		return
	}
	switch {
	case strings.HasPrefix(m.Text, "/start"):
		r.handleStart(ctx, m)
	case m.Text == btnProfile:
		r.handleProfile(ctx, m)
	case m.Text == btnBuyGift:
		r.reply(ctx, m.Chat.ID, "Pick a gift:", giftsKeyboard(r.catalog))
	case m.Text == btnBack:
		r.reply(ctx, m.Chat.ID, "Main menu:", mainKeyboard())
	case r.sessions.Active(m.From.ID):
		note := m.Text
		r.issueInvoice(ctx, m.Chat.ID, m.From.ID, &note)
	default:
		r.reply(ctx, m.Chat.ID, "Use the menu buttons.", mainKeyboard())
	}
}

func (r *Router) handleStart(ctx context.Context, m *telegram.Message) {
	if err := r.ledger.UpsertName(ctx, m.From.ID, m.From.FullName()); err != nil {
		log.Printf("upsert name user=%d: %v", m.From.ID, err)
	}
	text := fmt.Sprintf("Hi, %s!\nThis bot sells Telegram gifts (via the API) that are no longer available in the default shop.", m.From.FirstName)
	r.reply(ctx, m.Chat.ID, text, mainKeyboard())
}

func (r *Router) handleProfile(ctx context.Context, m *telegram.Message) {
	rec, ok, err := r.ledger.Get(ctx, m.From.ID)
	if err != nil {
		log.Printf("ledger get user=%d: %v", m.From.ID, err)
	}
	if !ok {
		rec = ledger.Record{Name: m.From.FullName()}
	}
	text := fmt.Sprintf("👤 Your name: %s\n🆔 Your ID: %d\n📊 Your operations: %d", rec.Name, m.From.ID, rec.Operations)
	r.reply(ctx, m.Chat.ID, text, backKeyboard())
}

func (r *Router) handleCallback(ctx context.Context, cq *telegram.CallbackQuery) {
	if err := r.api.AnswerCallbackQuery(ctx, cq.ID); err != nil {
		log.Printf("answer callback %s: %v", cq.ID, err)
	}
	if cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID

	switch {
	case strings.HasPrefix(cq.Data, cbGiftPrefix):
		key := strings.TrimPrefix(cq.Data, cbGiftPrefix)
		if err := r.flow.SelectGift(cq.From.ID, key); err != nil {
			r.edit(ctx, chatID, cq.Message.MessageID, "Unknown gift.", nil)
			return
		}
		r.edit(ctx, chatID, cq.Message.MessageID,
			"What note would you like to add?\nType the text or press the button below.", noNoteKeyboard())
	case cq.Data == cbNoNote:
		r.edit(ctx, chatID, cq.Message.MessageID, "OK, sending the invoice without a note...", nil)
		r.issueInvoice(ctx, chatID, cq.From.ID, nil)
	}
}

func (r *Router) issueInvoice(ctx context.Context, chatID, userID int64, note *string) {
	err := r.flow.IssueInvoice(ctx, userID, note)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNoActiveSelection):
		r.reply(ctx, chatID, "Error: no gift selected.", mainKeyboard())
	default:
		log.Printf("issue invoice user=%d: %v", userID, err)
		r.reply(ctx, chatID, "Could not create the invoice. Try again later.", mainKeyboard())
	}
}

func (r *Router) handlePreCheckout(ctx context.Context, q *telegram.PreCheckoutQuery) {
	if err := r.flow.ValidatePreCheckout(ctx, q.ID); err != nil {
		log.Printf("pre-checkout %s user=%d: %v", q.ID, q.From.ID, err)
	}
}

func (r *Router) handlePayment(ctx context.Context, m *telegram.Message) {
	if m.From == nil {
		return
	}
	res, err := r.flow.Fulfill(ctx, []byte(m.SuccessfulPayment.InvoicePayload), m.From.ID, m.From.FullName())
	switch {
	case err == nil:
		text := fmt.Sprintf("✅ Gift sent!\nYour operations: %d", res.NewCount)
		r.reply(ctx, m.Chat.ID, text, mainKeyboard())
	case errors.Is(err, payload.ErrCorrupt):
		r.reply(ctx, m.Chat.ID, "Payment processing error.", nil)
	case errors.Is(err, orchestrator.ErrUserMismatch):
		r.reply(ctx, m.Chat.ID, "Error: user mismatch.", nil)
	case errors.Is(err, giftcatalog.ErrUnknownGift):
		r.reply(ctx, m.Chat.ID, "Error: unknown gift.", nil)
	default:
		// delivery or ledger failure; details already logged by the flow
		r.reply(ctx, m.Chat.ID, "❌ Could not send the gift. Try again later.", nil)
	}
}

func (r *Router) reply(ctx context.Context, chatID int64, text string, markup interface{}) {
	if _, err := r.api.SendMessage(ctx, chatID, text, markup); err != nil {
		log.Printf("send message chat=%d: %v", chatID, err)
	}
}

func (r *Router) edit(ctx context.Context, chatID, messageID int64, text string, markup *telegram.InlineKeyboardMarkup) {
	if err := r.api.EditMessageText(ctx, chatID, messageID, text, markup); err != nil {
		log.Printf("edit message chat=%d: %v", chatID, err)
	}
}

func mainKeyboard() *telegram.ReplyKeyboardMarkup {
	return &telegram.ReplyKeyboardMarkup{
		Keyboard: [][]telegram.KeyboardButton{
			{{Text: btnProfile}, {Text: btnBuyGift}},
		},
		ResizeKeyboard: true,
	}
}

func backKeyboard() *telegram.ReplyKeyboardMarkup {
	return &telegram.ReplyKeyboardMarkup{
		Keyboard: [][]telegram.KeyboardButton{
			{{Text: btnBack}},
		},
		ResizeKeyboard: true,
	}
}

func giftsKeyboard(catalog *giftcatalog.Catalog) *telegram.InlineKeyboardMarkup {
	var rows [][]telegram.InlineKeyboardButton
	for _, g := range catalog.List() {
		rows = append(rows, []telegram.InlineKeyboardButton{
			{Text: g.DisplayName, CallbackData: cbGiftPrefix + g.Key},
		})
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func noNoteKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: btnNoNote, CallbackData: cbNoNote}},
		},
	}
}
