package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanLocation — место проведения плана.
type PlanLocation struct {
	Name    string  `json:"name" validate:"required"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	City    string  `json:"city"`
}

// CourtReservation — бронь корта, привязанная к плану.
type CourtReservation struct {
	CourtName       string          `json:"court_name"`
	ReservationTime string          `json:"reservation_time"`
	Price           decimal.Decimal `json:"price"`
}

// Plan — совместное мероприятие, к которому могут присоединяться пользователи.
// Количество участников не хранится, а вычисляется по списку Participants.
type Plan struct {
	ID               string              `json:"id"`
	Title            string              `json:"title"`
	Description      string              `json:"description"`
	Image            string              `json:"image,omitempty"`
	Category         string              `json:"category"`
	Date             time.Time           `json:"date"`
	Time             string              `json:"time"`
	Location         PlanLocation        `json:"location"`
	MaxParticipants  *int                `json:"max_participants,omitempty"`
	PricePerPerson   decimal.NullDecimal `json:"price_per_person"`
	MinAge           *int                `json:"min_age,omitempty"`
	CourtReservation *CourtReservation   `json:"court_reservation,omitempty"`
	Creator          UserSummary         `json:"creator"`
	Participants     []UserSummary       `json:"participants"`
	CreatedAt        time.Time           `json:"created_at"`
}

// CurrentParticipants возвращает текущее число участников.
func (p Plan) CurrentParticipants() int {
	return len(p.Participants)
}

// IsFull сообщает, достигнут ли лимит участников.
func (p Plan) IsFull() bool {
	return p.MaxParticipants != nil && len(p.Participants) >= *p.MaxParticipants
}

// HasParticipant сообщает, состоит ли пользователь в плане.
func (p Plan) HasParticipant(userID string) bool {
	for _, u := range p.Participants {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// IsPaid сообщает, требует ли план оплаты участия.
func (p Plan) IsPaid() bool {
	return p.PricePerPerson.Valid && p.PricePerPerson.Decimal.IsPositive()
}

// Clone возвращает глубокую копию плана.
func (p Plan) Clone() Plan {
	c := p
	c.Participants = append([]UserSummary{}, p.Participants...)
	if p.MaxParticipants != nil {
		v := *p.MaxParticipants
		c.MaxParticipants = &v
	}
	if p.MinAge != nil {
		v := *p.MinAge
		c.MinAge = &v
	}
	if p.CourtReservation != nil {
		v := *p.CourtReservation
		c.CourtReservation = &v
	}
	return c
}

// PlanJSON — представление плана в ответах API с производными полями.
type PlanJSON struct {
	Plan
	CurrentParticipants int  `json:"current_participants"`
	IsFull              bool `json:"is_full"`
}

// ToJSON дополняет план производными полями.
func (p Plan) ToJSON() PlanJSON {
	return PlanJSON{Plan: p, CurrentParticipants: p.CurrentParticipants(), IsFull: p.IsFull()}
}

// PlanInput используется для приёма данных о плане из JSON-запроса.
type PlanInput struct {
	Title            string              `json:"title" validate:"required,min=1,max=200"`
	Description      string              `json:"description" validate:"max=5000"`
	Image            string              `json:"image,omitempty"`
	Category         string              `json:"category" validate:"required"`
	Date             time.Time           `json:"date" validate:"required"`
	Time             string              `json:"time" validate:"required"`
	Location         PlanLocation        `json:"location"`
	MaxParticipants  *int                `json:"max_participants,omitempty" validate:"omitempty,gte=1"`
	PricePerPerson   decimal.NullDecimal `json:"price_per_person"`
	MinAge           *int                `json:"min_age,omitempty" validate:"omitempty,gte=0,lte=130"`
	CourtReservation *CourtReservation   `json:"court_reservation,omitempty"`
}

// PlanUpdate — частичное обновление плана. nil означает «не менять».
type PlanUpdate struct {
	Title            *string              `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description      *string              `json:"description,omitempty" validate:"omitempty,max=5000"`
	Image            *string              `json:"image,omitempty"`
	Category         *string              `json:"category,omitempty"`
	Date             *time.Time           `json:"date,omitempty"`
	Time             *string              `json:"time,omitempty"`
	Location         *PlanLocation        `json:"location,omitempty"`
	MaxParticipants  *int                 `json:"max_participants,omitempty" validate:"omitempty,gte=1"`
	PricePerPerson   *decimal.NullDecimal `json:"price_per_person,omitempty"`
	MinAge           *int                 `json:"min_age,omitempty" validate:"omitempty,gte=0,lte=130"`
	CourtReservation *CourtReservation    `json:"court_reservation,omitempty"`
}

// Apply применяет частичное обновление к плану.
func (upd PlanUpdate) Apply(p *Plan) {
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Image != nil {
		p.Image = *upd.Image
	}
	if upd.Category != nil {
		p.Category = *upd.Category
	}
	if upd.Date != nil {
		p.Date = *upd.Date
	}
	if upd.Time != nil {
		p.Time = *upd.Time
	}
	if upd.Location != nil {
		p.Location = *upd.Location
	}
	if upd.MaxParticipants != nil {
		v := *upd.MaxParticipants
		p.MaxParticipants = &v
	}
	if upd.PricePerPerson != nil {
		p.PricePerPerson = *upd.PricePerPerson
	}
	if upd.MinAge != nil {
		v := *upd.MinAge
		p.MinAge = &v
	}
	if upd.CourtReservation != nil {
		v := *upd.CourtReservation
		p.CourtReservation = &v
	}
}

// LeaveInput — выход из плана. При Refund оплаченное участие возвращается
// на кошелёк.
type LeaveInput struct {
	Refund bool `json:"refund"`
}
