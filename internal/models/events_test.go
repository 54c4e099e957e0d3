package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeKey(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"order id present", `{"orderId":"o-1","userId":"u-1"}`, "o-1"},
		{"order id missing", `{"productId":"p-1"}`, DefaultMessageKey},
		{"order id empty", `{"orderId":""}`, DefaultMessageKey},
		{"order id numeric", `{"orderId":42}`, "42"},
		{"payload not an object", `[1,2,3]`, DefaultMessageKey},
		{"empty payload", ``, DefaultMessageKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := Envelope{Type: EventOrderPlaced, Payload: json.RawMessage(tt.payload)}
			assert.Equal(t, tt.want, env.Key())
		})
	}
}

func TestKindTopics(t *testing.T) {
	for _, k := range AllEventKinds {
		assert.True(t, k.Known(), k)
		assert.NotEmpty(t, k.Topic(), k)
	}

	assert.Equal(t, TopicOrderEvents, EventOrderPlaced.Topic())
	assert.Equal(t, TopicProductEvents, EventInventoryUpdated.Topic())
	assert.Equal(t, TopicUserEvents, EventUserRegistered.Topic())
	assert.False(t, EventKind("PAYMENT_CAPTURED").Known())
	assert.Empty(t, EventKind("PAYMENT_CAPTURED").Topic())
}

func TestNewEnvelopeRoundTrip(t *testing.T) {
	placed := OrderPlaced{
		OrderID:     "o-1",
		UserID:      "u-1",
		Items:       []EventItem{{ProductID: "p-1", Quantity: 2, Price: 9.5}},
		TotalAmount: 19,
		Status:      OrderStatusPending,
		CreatedAt:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	env, err := NewEnvelope(placed)
	require.NoError(t, err)
	assert.Equal(t, EventOrderPlaced, env.Type)
	assert.Equal(t, "o-1", env.Key())

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"ORDER_PLACED"`)
	assert.Contains(t, string(raw), `"totalAmount":19`)

	parsed, err := ParseEnvelope(raw)
	require.NoError(t, err)

	ev, err := DecodeEvent(parsed)
	require.NoError(t, err)
	assert.Equal(t, placed, ev)
}

func TestItemShapes(t *testing.T) {
	env, err := NewEnvelope(OrderPlaced{
		OrderID: "o-1",
		Items:   []EventItem{{ProductID: "free-sample", Quantity: 1, Price: 0}},
	})
	require.NoError(t, err)
	assert.Contains(t, string(env.Payload), `"items":[{"productId":"free-sample","quantity":1,"price":0}]`)

	env, err = NewEnvelope(OrderCancelled{
		OrderID: "o-1",
		Items:   StockOf([]EventItem{{ProductID: "p-1", Quantity: 2, Price: 9.5}}),
	})
	require.NoError(t, err)
	assert.Contains(t, string(env.Payload), `"items":[{"productId":"p-1","quantity":2}]`)
}

func TestDecodeEventUnknownKind(t *testing.T) {
	env := Envelope{Type: "PAYMENT_CAPTURED", Payload: json.RawMessage(`{"orderId":"o-1"}`)}

	ev, err := DecodeEvent(env)
	require.NoError(t, err)

	unknown, ok := ev.(UnknownEvent)
	require.True(t, ok)
	assert.Equal(t, EventKind("PAYMENT_CAPTURED"), unknown.Kind())
}

func TestDecodeEventRejectsMalformedPayloads(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
	}{
		{"placed without order id", Envelope{Type: EventOrderPlaced, Payload: json.RawMessage(`{"items":[{"productId":"p","quantity":1}]}`)}},
		{"placed without items", Envelope{Type: EventOrderPlaced, Payload: json.RawMessage(`{"orderId":"o"}`)}},
		{"cancelled with zero quantity", Envelope{Type: EventOrderCancelled, Payload: json.RawMessage(`{"orderId":"o","items":[{"productId":"p","quantity":0}]}`)}},
		{"quantity wrong type", Envelope{Type: EventOrderPlaced, Payload: json.RawMessage(`{"orderId":"o","items":[{"productId":"p","quantity":"two"}]}`)}},
		{"inventory negative", Envelope{Type: EventInventoryUpdated, Payload: json.RawMessage(`{"productId":"p","inventory":-1}`)}},
		{"user without id", Envelope{Type: EventUserRegistered, Payload: json.RawMessage(`{"name":"x"}`)}},
		{"missing payload", Envelope{Type: EventProductCreated}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEvent(tt.env)
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}

func TestParseEnvelope(t *testing.T) {
	_, err := ParseEnvelope([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	_, err = ParseEnvelope([]byte(`{"payload":{}}`))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	env, err := ParseEnvelope([]byte(`{"type":"USER_REGISTERED","payload":{"userId":"u-1"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventUserRegistered, env.Type)
	assert.Equal(t, DefaultMessageKey, env.Key())
}

func TestOrderStatusValid(t *testing.T) {
	for _, s := range OrderStatuses {
		assert.True(t, s.Valid())
	}
	assert.False(t, OrderStatus("returned").Valid())
	assert.False(t, OrderStatus("").Valid())
}

func TestTransitionErrorUnwraps(t *testing.T) {
	err := &TransitionError{OrderID: "o-1", From: OrderStatusShipped, To: OrderStatusCancelled}
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "shipped")
}
