package notify

import (
	"encoding/json"
	"sync"
)

const (
	EventBookingStatusChanged = "booking_status_changed"
	EventWithdrawalCompleted  = "withdrawal_completed"
	EventWithdrawalFailed     = "withdrawal_failed"
	EventBalanceChanged       = "balance_changed"
)

type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type BookingStatusPayload struct {
	BookingID string `json:"booking_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Reason    string `json:"reason,omitempty"`
}

type WithdrawalPayload struct {
	WithdrawalID string `json:"withdrawal_id"`
	NetAmount    string `json:"net_amount"`
	Message      string `json:"message,omitempty"`
	RetryCount   int    `json:"retry_count,omitempty"`
}

type BalancePayload struct {
	WalletID  string `json:"wallet_id"`
	Available string `json:"available"`
	Pending   string `json:"pending"`
}

// Hub fans events out to a user's connected websocket clients. Delivery is
// fire-and-forget: a slow or absent client drops the event, and no caller
// ever blocks on notification.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

func (h *Hub) Notify(userID string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}
