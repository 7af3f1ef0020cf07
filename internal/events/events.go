package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Event interface {
	EventName() string
}

// Publisher — fire-and-forget с точки зрения актора: доставка
// at-least-once, идемпотентность на стороне подписчика.
type Publisher interface {
	Publish(ctx context.Context, key string, e Event) error
}

// --- inventory ---

type StockAddedEvent struct {
	InventoryID uuid.UUID `json:"inventory_id"`
	Quantity    int32     `json:"quantity"`
	Available   int32     `json:"available"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (StockAddedEvent) EventName() string { return "inventory.stock_added" }

type StockReducedEvent struct {
	InventoryID uuid.UUID `json:"inventory_id"`
	Quantity    int32     `json:"quantity"`
	Available   int32     `json:"available"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (StockReducedEvent) EventName() string { return "inventory.stock_reduced" }

type ReservationCreatedEvent struct {
	InventoryID uuid.UUID `json:"inventory_id"`
	OrderID     uuid.UUID `json:"order_id"`
	Quantity    int32     `json:"quantity"`
	ReservedAt  time.Time `json:"reserved_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (ReservationCreatedEvent) EventName() string { return "inventory.reservation_created" }

type ReservationConfirmedEvent struct {
	InventoryID uuid.UUID `json:"inventory_id"`
	OrderID     uuid.UUID `json:"order_id"`
	Quantity    int32     `json:"quantity"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

func (ReservationConfirmedEvent) EventName() string { return "inventory.reservation_confirmed" }

type ReservationCancelledEvent struct {
	InventoryID uuid.UUID `json:"inventory_id"`
	OrderID     uuid.UUID `json:"order_id"`
	Quantity    int32     `json:"quantity"`
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}

func (ReservationCancelledEvent) EventName() string { return "inventory.reservation_cancelled" }

type ReservationExpiredEvent struct {
	InventoryID uuid.UUID `json:"inventory_id"`
	OrderID     uuid.UUID `json:"order_id"`
	Quantity    int32     `json:"quantity"`
	ExpiredAt   time.Time `json:"expired_at"`
}

func (ReservationExpiredEvent) EventName() string { return "inventory.reservation_expired" }

// --- matching ---

type MatchStartedEvent struct {
	InquiryID    uuid.UUID `json:"inquiry_id"`
	UserID       uuid.UUID `json:"user_id"`
	BearingModel string    `json:"bearing_model"`
	Brand        string    `json:"brand"`
	Quantity     int32     `json:"quantity"`
	StartedAt    time.Time `json:"started_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (MatchStartedEvent) EventName() string { return "match.started" }

type MatchCandidateAddedEvent struct {
	InquiryID    uuid.UUID `json:"inquiry_id"`
	SupplierID   uuid.UUID `json:"supplier_id"`
	MatchScore   float64   `json:"match_score"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

func (MatchCandidateAddedEvent) EventName() string { return "match.candidate_added" }

type MatchCompletedEvent struct {
	InquiryID   uuid.UUID `json:"inquiry_id"`
	SupplierID  uuid.UUID `json:"supplier_id"`
	Reason      string    `json:"reason,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

func (MatchCompletedEvent) EventName() string { return "match.completed" }

type MatchCancelledEvent struct {
	InquiryID   uuid.UUID `json:"inquiry_id"`
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}

func (MatchCancelledEvent) EventName() string { return "match.cancelled" }

type MatchFailedEvent struct {
	InquiryID uuid.UUID `json:"inquiry_id"`
	Reason    string    `json:"reason,omitempty"`
	FailedAt  time.Time `json:"failed_at"`
}

func (MatchFailedEvent) EventName() string { return "match.failed" }

type MatchTimedOutEvent struct {
	InquiryID  uuid.UUID `json:"inquiry_id"`
	TimedOutAt time.Time `json:"timed_out_at"`
}

func (MatchTimedOutEvent) EventName() string { return "match.timed_out" }
