// services/notification_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Notification event types understood by the Character Service.
const (
	NotificationItemTransfer = "ITEM_TRANSFER"
	NotificationDuelFinished = "DUEL_FINISHED"
)

// CombatNotification is the event posted to the Character Service's inbound
// combat notification endpoint.
type CombatNotification struct {
	Type      string    `json:"type"`
	DuelID    string    `json:"duelId"`
	WinnerID  *string   `json:"winnerId,omitempty"`
	LoserID   *string   `json:"loserId,omitempty"`
	ItemID    *int64    `json:"itemId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationService emits best-effort signals to the Character Service.
// Delivery is at-most-once: failures are logged and swallowed, never
// retried. A dropped notification costs the receiver a cache invalidation,
// not a duel-outcome inconsistency — the item transfer itself goes through
// the gateway separately.
type NotificationService struct {
	BaseURL      string
	ServiceToken string
	Client       *http.Client
}

func NewNotificationService(baseURL, serviceToken string) *NotificationService {
	return &NotificationService{
		BaseURL:      baseURL,
		ServiceToken: serviceToken,
		Client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Notify posts the event. Fire and forget — no error is ever returned.
func (n *NotificationService) Notify(ctx context.Context, event CombatNotification) {
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("[NOTIFY] ❌ Failed to encode %s event for duel %s: %v", event.Type, event.DuelID, err)
		return
	}

	url := fmt.Sprintf("%s/api/character/notifications/combat", n.BaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		log.Printf("[NOTIFY] ❌ Failed to build %s notification for duel %s: %v", event.Type, event.DuelID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", n.ServiceToken)

	resp, err := n.Client.Do(req)
	if err != nil {
		log.Printf("[NOTIFY] ❌ Failed to notify character service (%s, duel %s): %v", event.Type, event.DuelID, err)
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[NOTIFY] ⚠️ Character service returned %d for %s notification (duel %s)", resp.StatusCode, event.Type, event.DuelID)
		return
	}

	log.Printf("[NOTIFY] 📨 Sent %s notification for duel %s", event.Type, event.DuelID)
}
