package inventory

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

// Reservation — временное удержание количества под заказ. Создаётся
// ACTIVE и переходит ровно в одно терминальное состояние; обратных
// переходов нет. Терминальные записи остаются в списке для аудита.
type Reservation struct {
	OrderID    uuid.UUID         `json:"order_id"`
	Quantity   int32             `json:"quantity"`
	ReservedAt time.Time         `json:"reserved_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
	Status     ReservationStatus `json:"status"`
	Reason     string            `json:"reason,omitempty"`
}

// State — состояние одной складской позиции. Инвариант:
// AvailableQuantity + сумма ACTIVE-резерваций == TotalQuantity.
type State struct {
	ID                uuid.UUID     `json:"id"`
	BearingModel      string        `json:"bearing_model"`
	Brand             string        `json:"brand"`
	TotalQuantity     int32         `json:"total_quantity"`
	AvailableQuantity int32         `json:"available_quantity"`
	Reservations      []Reservation `json:"reservations"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// ReservedQuantity — производная величина, отдельно не хранится.
func (s *State) ReservedQuantity() int32 {
	return s.TotalQuantity - s.AvailableQuantity
}

// findActive возвращает ACTIVE-резервацию заказа, если она есть.
func (s *State) findActive(orderID uuid.UUID) *Reservation {
	for i := range s.Reservations {
		r := &s.Reservations[i]
		if r.OrderID == orderID && r.Status == ReservationActive {
			return r
		}
	}
	return nil
}

// findLatest возвращает последнюю по времени создания резервацию заказа.
func (s *State) findLatest(orderID uuid.UUID) *Reservation {
	var found *Reservation
	for i := range s.Reservations {
		if s.Reservations[i].OrderID == orderID {
			found = &s.Reservations[i]
		}
	}
	return found
}

// reclaim переводит просроченные ACTIVE-резервации в EXPIRED и
// возвращает количество на склад. Вызывается в начале каждого хода.
func (s *State) reclaim(now time.Time) []Reservation {
	var expired []Reservation
	for i := range s.Reservations {
		r := &s.Reservations[i]
		if r.Status == ReservationActive && now.After(r.ExpiresAt) {
			r.Status = ReservationExpired
			s.AvailableQuantity += r.Quantity
			expired = append(expired, *r)
		}
	}
	if len(expired) > 0 {
		s.LastUpdated = now
	}
	return expired
}

func (s *State) clone() *State {
	cp := *s
	cp.Reservations = make([]Reservation, len(s.Reservations))
	copy(cp.Reservations, s.Reservations)
	return &cp
}
