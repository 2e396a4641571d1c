package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// apiRecorder serves canned Bot API responses and records requests.
type apiRecorder struct {
	mu        sync.Mutex
	methods   []string
	bodies    []map[string]interface{}
	responses map[string]string // method -> raw response body
}

func newAPIRecorder() *apiRecorder {
	return &apiRecorder{responses: map[string]string{}}
}

func (a *apiRecorder) respond(method, body string) {
	a.responses[method] = body
}

func (a *apiRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// path is /bot<token>/<method>
	method := r.URL.Path[len("/bottest-token/"):]
	a.methods = append(a.methods, method)

	raw, _ := io.ReadAll(r.Body)
	var body map[string]interface{}
	_ = json.Unmarshal(raw, &body)
	a.bodies = append(a.bodies, body)

	resp, ok := a.responses[method]
	if !ok {
		resp = `{"ok":true,"result":true}`
	}
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, resp)
}

func newTestClient(t *testing.T) (*Client, *apiRecorder) {
	t.Helper()
	rec := newAPIRecorder()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	return NewClient("test-token", WithAPIBase(srv.URL), WithHTTPClient(srv.Client())), rec
}

func TestGetUpdates(t *testing.T) {
	c, rec := newTestClient(t)
	rec.respond("getUpdates", `{"ok":true,"result":[
		{"update_id":10,"message":{"message_id":1,"chat":{"id":42},"from":{"id":42,"first_name":"Ana"},"text":"/start"}},
		{"update_id":11,"pre_checkout_query":{"id":"pcq","from":{"id":42,"first_name":"Ana"},"currency":"XTR","total_amount":50,"invoice_payload":"{}"}}
	]}`)

	updates, err := c.GetUpdates(context.Background(), 10, 50)
	if err != nil {
		t.Fatalf("get updates: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if updates[0].Message == nil || updates[0].Message.Text != "/start" {
		t.Fatalf("wrong first update: %+v", updates[0])
	}
	if updates[1].PreCheckoutQuery == nil || updates[1].PreCheckoutQuery.ID != "pcq" {
		t.Fatalf("wrong second update: %+v", updates[1])
	}

	if rec.bodies[0]["offset"].(float64) != 10 || rec.bodies[0]["timeout"].(float64) != 50 {
		t.Fatalf("wrong poll params: %+v", rec.bodies[0])
	}
}

func TestSendInvoice_StarsParams(t *testing.T) {
	c, rec := newTestClient(t)

	err := c.SendInvoice(context.Background(), 42, "Gift purchase: ❤️", "A Telegram gift for 50 stars",
		[]byte(`{"v":1,"user_id":42,"gift_key":"heart_14feb","note":null}`), "XTR", 50)
	if err != nil {
		t.Fatalf("send invoice: %v", err)
	}

	body := rec.bodies[0]
	if body["currency"] != "XTR" {
		t.Fatalf("wrong currency: %v", body["currency"])
	}
	// Stars invoices must send an empty provider token
	if tok, ok := body["provider_token"]; !ok || tok != "" {
		t.Fatalf("provider_token must be present and empty, got %v", body["provider_token"])
	}
	if body["payload"] != `{"v":1,"user_id":42,"gift_key":"heart_14feb","note":null}` {
		t.Fatalf("payload not carried verbatim: %v", body["payload"])
	}
	prices := body["prices"].([]interface{})
	if len(prices) != 1 || prices[0].(map[string]interface{})["amount"].(float64) != 50 {
		t.Fatalf("wrong prices: %v", prices)
	}
}

func TestSendGift_NoteOmittedWhenNil(t *testing.T) {
	c, rec := newTestClient(t)

	if err := c.SendGift(context.Background(), 42, "5801108895304779062", nil); err != nil {
		t.Fatalf("send gift: %v", err)
	}
	if _, ok := rec.bodies[0]["text"]; ok {
		t.Fatalf("nil note must be omitted: %+v", rec.bodies[0])
	}
	if rec.bodies[0]["gift_id"] != "5801108895304779062" {
		t.Fatalf("wrong gift id: %v", rec.bodies[0]["gift_id"])
	}

	note := "Happy day"
	if err := c.SendGift(context.Background(), 42, "5801108895304779062", &note); err != nil {
		t.Fatalf("send gift with note: %v", err)
	}
	if rec.bodies[1]["text"] != "Happy day" {
		t.Fatalf("note not sent: %+v", rec.bodies[1])
	}
}

func TestAnswerPreCheckoutQuery(t *testing.T) {
	c, rec := newTestClient(t)

	if err := c.AnswerPreCheckoutQuery(context.Background(), "pcq-1", true, ""); err != nil {
		t.Fatalf("answer pre-checkout: %v", err)
	}
	body := rec.bodies[0]
	if body["pre_checkout_query_id"] != "pcq-1" || body["ok"] != true {
		t.Fatalf("wrong params: %+v", body)
	}
}

func TestCall_APIError(t *testing.T) {
	c, rec := newTestClient(t)
	rec.respond("sendMessage", `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)

	_, err := c.SendMessage(context.Background(), 42, "hi", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != 403 || apiErr.Method != "sendMessage" {
		t.Fatalf("wrong error detail: %+v", apiErr)
	}
}

func TestUserFullName(t *testing.T) {
	if got := (User{FirstName: "Ana"}).FullName(); got != "Ana" {
		t.Fatalf("got %q", got)
	}
	if got := (User{FirstName: "Ana", LastName: "K"}).FullName(); got != "Ana K" {
		t.Fatalf("got %q", got)
	}
}
