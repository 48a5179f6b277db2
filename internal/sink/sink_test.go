package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/lvonguyen/s1see/internal/model"
)

func sampleEvent() model.Event {
	return model.Event{
		ID:             "evt-1",
		Name:           "Mobility.Handover.Completed",
		TimestampNs:    1000,
		SubscriberKey:  "imsi:001010123456789",
		Attributes:     map[string]string{"severity": "info"},
		Evidence:       []model.EvidenceRef{{Partition: 0, Offset: 5}},
		RulesetID:      "mobility",
		RulesetVersion: "1.0",
		Confidence:     1.0,
	}
}

func TestValidateTokenFailsClosedWhenUnset(t *testing.T) {
	os.Unsetenv("TEST_SINK_TOKEN")
	r := NewReceiver(ReceiverConfig{TokenEnv: "TEST_SINK_TOKEN"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	if r.validateToken(req) {
		t.Error("validateToken should fail closed when no token is configured")
	}
}

func TestValidateTokenAcceptsBearerHeader(t *testing.T) {
	const token = "secret-123"
	os.Setenv("TEST_SINK_TOKEN", token)
	defer os.Unsetenv("TEST_SINK_TOKEN")

	r := NewReceiver(ReceiverConfig{TokenEnv: "TEST_SINK_TOKEN"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if !r.validateToken(req) {
		t.Error("validateToken should accept a matching bearer token")
	}
}

func TestValidateTokenRejectsWrongOrMissingScheme(t *testing.T) {
	const token = "secret-123"
	os.Setenv("TEST_SINK_TOKEN", token)
	defer os.Unsetenv("TEST_SINK_TOKEN")

	r := NewReceiver(ReceiverConfig{TokenEnv: "TEST_SINK_TOKEN"}, nil)

	for _, header := range []string{"", token, "Basic " + token, "Bearer wrong"} {
		req := httptest.NewRequest(http.MethodPost, "/events", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if r.validateToken(req) {
			t.Errorf("validateToken should reject header %q", header)
		}
	}
}

func TestHandleEventsSuccessUpdatesStatsAndCallsHandler(t *testing.T) {
	const token = "test-token"
	os.Setenv("TEST_SINK_TOKEN", token)
	defer os.Unsetenv("TEST_SINK_TOKEN")

	var received []model.Event
	r := NewReceiver(ReceiverConfig{TokenEnv: "TEST_SINK_TOKEN", MaxEventSize: 1 << 20}, func(ctx context.Context, events []model.Event) error {
		received = events
		return nil
	})

	body, _ := json.Marshal([]eventDoc{toWire(sampleEvent())})
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	r.handleEvents(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if len(received) != 1 || received[0].ID != "evt-1" {
		t.Fatalf("handler received %+v", received)
	}

	stats := r.Stats()
	if stats.EventsReceived != 1 {
		t.Errorf("EventsReceived = %d, want 1", stats.EventsReceived)
	}
}

func TestHandleEventsHandlerErrorReturns500AndDropsCount(t *testing.T) {
	const token = "test-token"
	os.Setenv("TEST_SINK_TOKEN", token)
	defer os.Unsetenv("TEST_SINK_TOKEN")

	r := NewReceiver(ReceiverConfig{TokenEnv: "TEST_SINK_TOKEN", MaxEventSize: 1 << 20}, func(ctx context.Context, events []model.Event) error {
		return errors.New("downstream unavailable")
	})

	body, _ := json.Marshal([]eventDoc{toWire(sampleEvent())})
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	r.handleEvents(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if r.Stats().EventsDropped != 1 {
		t.Errorf("EventsDropped = %d, want 1", r.Stats().EventsDropped)
	}
}

func TestHandleEventsRejectsOversizedBatch(t *testing.T) {
	const token = "test-token"
	os.Setenv("TEST_SINK_TOKEN", token)
	defer os.Unsetenv("TEST_SINK_TOKEN")

	r := NewReceiver(ReceiverConfig{TokenEnv: "TEST_SINK_TOKEN", MaxEventSize: 1 << 20, MaxBatchSize: 1}, nil)

	docs := []eventDoc{toWire(sampleEvent()), toWire(sampleEvent())}
	body, _ := json.Marshal(docs)
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	r.handleEvents(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rr.Code)
	}
}

func TestSenderRoundTripsToTestServer(t *testing.T) {
	const token = "sender-token"
	os.Setenv("TEST_SINK_SENDER_TOKEN", token)
	defer os.Unsetenv("TEST_SINK_SENDER_TOKEN")

	var gotAuth string
	var gotDocs []eventDoc
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotDocs)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	sender, err := NewSender(SenderConfig{URL: ts.URL, TokenEnv: "TEST_SINK_SENDER_TOKEN", RetryCount: 0})
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}

	if err := sender.Send(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotAuth != "Bearer "+token {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if len(gotDocs) != 1 || gotDocs[0].ID != "evt-1" {
		t.Fatalf("server received %+v", gotDocs)
	}
	if sender.Stats().EventsSent != 1 {
		t.Errorf("EventsSent = %d, want 1", sender.Stats().EventsSent)
	}
}

func TestSenderRetriesThenFails(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	sender, err := NewSender(SenderConfig{URL: ts.URL, RetryCount: 1})
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}

	err = sender.SendBatch(context.Background(), []model.Event{sampleEvent()})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2 (1 initial + 1 retry)", attempts)
	}
	if sender.Stats().EventsFailed != 1 {
		t.Errorf("EventsFailed = %d, want 1", sender.Stats().EventsFailed)
	}
}

func TestNewSenderRequiresURL(t *testing.T) {
	if _, err := NewSender(SenderConfig{}); err == nil {
		t.Fatal("expected an error when URL is empty")
	}
}
