package models

import (
	"strings"
	"time"
)

type Booking struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Service   string    `json:"service"`
	Date      string    `json:"date"`
	CarModel  string    `json:"carModel"`
	Message   string    `json:"message"`
	Status    string    `json:"status"` // Pending, Completed
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BookingInput is the public submission form. Both historical field shapes
// are accepted: serviceType/bookingDate are aliases of service/date.
type BookingInput struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Service     string `json:"service"`
	ServiceType string `json:"serviceType"`
	Date        string `json:"date"`
	BookingDate string `json:"bookingDate"`
	CarModel    string `json:"carModel"`
	Message     string `json:"message"`
}

// Normalize trims every field and folds the aliases into the canonical names.
func (in BookingInput) Normalize() BookingInput {
	out := BookingInput{
		Name:     strings.TrimSpace(in.Name),
		Email:    strings.TrimSpace(in.Email),
		Phone:    strings.TrimSpace(in.Phone),
		Service:  strings.TrimSpace(in.Service),
		Date:     strings.TrimSpace(in.Date),
		CarModel: strings.TrimSpace(in.CarModel),
		Message:  strings.TrimSpace(in.Message),
	}
	if out.Service == "" {
		out.Service = strings.TrimSpace(in.ServiceType)
	}
	if out.Date == "" {
		out.Date = strings.TrimSpace(in.BookingDate)
	}
	return out
}

// Missing returns the names of required fields that are empty.
// Call on a normalized input.
func (in BookingInput) Missing() []string {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"name", in.Name},
		{"email", in.Email},
		{"phone", in.Phone},
		{"service", in.Service},
		{"date", in.Date},
	}
	for _, f := range required {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// ToBooking builds a new pending, non-archived booking from a normalized input.
func (in BookingInput) ToBooking() *Booking {
	carModel := in.CarModel
	if carModel == "" {
		carModel = DefaultCarModel
	}
	return &Booking{
		Name:     in.Name,
		Email:    in.Email,
		Phone:    in.Phone,
		Service:  in.Service,
		Date:     in.Date,
		CarModel: carModel,
		Message:  in.Message,
		Status:   StatusPending,
		Archived: false,
	}
}

type DashboardStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
}
