// Package telegram is a thin typed client for the Telegram Bot API, covering
// the handful of methods this bot uses. Requests are JSON POSTs to
// https://api.telegram.org/bot<token>/<method>.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// APIError is a non-ok Bot API response.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Client talks to the Bot API for a single bot token.
type Client struct {
	httpClient *http.Client
	baseURL    string // <api base>/bot<token>
}

// Option configures the Client.
type Option func(*Client)

// WithAPIBase overrides the API base URL (tests, local API servers).
func WithAPIBase(base string) Option {
	return func(c *Client) {
		c.baseURL = base
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient returns a client for the given bot token. The default HTTP
// timeout leaves headroom for getUpdates long polls.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 65 * time.Second},
		baseURL:    defaultAPIBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = c.baseURL + "/bot" + token
	return c
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

// call POSTs params to a Bot API method and unmarshals the result into out
// (which may be nil when the result is not needed).
func (c *Client) call(ctx context.Context, method string, params, out interface{}) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var env apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !env.OK {
		return &APIError{Method: method, Code: env.ErrorCode, Description: env.Description}
	}
	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// GetMe returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	var me User
	err := c.call(ctx, "getMe", struct{}{}, &me)
	return me, err
}

// GetUpdates long-polls for updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error) {
	params := struct {
		Offset  int64 `json:"offset"`
		Timeout int   `json:"timeout"`
	}{Offset: offset, Timeout: timeoutSeconds}

	var updates []Update
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage sends text to a chat. markup may be a ReplyKeyboardMarkup, an
// InlineKeyboardMarkup, or nil.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup interface{}) (Message, error) {
	params := struct {
		ChatID      int64       `json:"chat_id"`
		Text        string      `json:"text"`
		ReplyMarkup interface{} `json:"reply_markup,omitempty"`
	}{ChatID: chatID, Text: text, ReplyMarkup: markup}

	var msg Message
	err := c.call(ctx, "sendMessage", params, &msg)
	return msg, err
}

// EditMessageText replaces the text (and inline keyboard) of a sent message.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup *InlineKeyboardMarkup) error {
	params := struct {
		ChatID      int64                 `json:"chat_id"`
		MessageID   int64                 `json:"message_id"`
		Text        string                `json:"text"`
		ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	}{ChatID: chatID, MessageID: messageID, Text: text, ReplyMarkup: markup}

	return c.call(ctx, "editMessageText", params, nil)
}

// AnswerCallbackQuery acks an inline-button press.
func (c *Client) AnswerCallbackQuery(ctx context.Context, queryID string) error {
	params := struct {
		CallbackQueryID string `json:"callback_query_id"`
	}{CallbackQueryID: queryID}

	return c.call(ctx, "answerCallbackQuery", params, nil)
}

// SendInvoice issues a Stars invoice carrying the opaque payload. Stars
// invoices use an empty provider token.
func (c *Client) SendInvoice(ctx context.Context, chatID int64, title, description string, payload []byte, currency string, amount int64) error {
	params := struct {
		ChatID         int64          `json:"chat_id"`
		Title          string         `json:"title"`
		Description    string         `json:"description"`
		Payload        string         `json:"payload"`
		ProviderToken  string         `json:"provider_token"`
		Currency       string         `json:"currency"`
		Prices         []LabeledPrice `json:"prices"`
		StartParameter string         `json:"start_parameter,omitempty"`
	}{
		ChatID:         chatID,
		Title:          title,
		Description:    description,
		Payload:        string(payload),
		Currency:       currency,
		Prices:         []LabeledPrice{{Label: "Gift", Amount: amount}},
		StartParameter: "gift_payment",
	}

	return c.call(ctx, "sendInvoice", params, nil)
}

// AnswerPreCheckoutQuery approves or rejects a pre-checkout query.
func (c *Client) AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	params := struct {
		PreCheckoutQueryID string `json:"pre_checkout_query_id"`
		OK                 bool   `json:"ok"`
		ErrorMessage       string `json:"error_message,omitempty"`
	}{PreCheckoutQueryID: queryID, OK: ok, ErrorMessage: errorMessage}

	return c.call(ctx, "answerPreCheckoutQuery", params, nil)
}

// SendGift delivers a gift to a user, optionally with a text note.
func (c *Client) SendGift(ctx context.Context, userID int64, giftID string, text *string) error {
	params := struct {
		UserID int64   `json:"user_id"`
		GiftID string  `json:"gift_id"`
		Text   *string `json:"text,omitempty"`
	}{UserID: userID, GiftID: giftID, Text: text}

	return c.call(ctx, "sendGift", params, nil)
}
