package types

import "time"

// EventType identifies the notification records emitted by mutating registry
// operations for external observers.
type EventType string

const (
	EventDoctorRegistered     EventType = "DoctorRegistered"
	EventAppointmentSlotAdded EventType = "AppointmentSlotAdded"
	EventAppointmentBooked    EventType = "AppointmentBooked"
)

// RegistryEvent is the envelope for a registry notification. Exactly one of
// the payload fields is populated, matching Type.
type RegistryEvent struct {
	ID        string                     `json:"id"`
	Type      EventType                  `json:"type"`
	Timestamp time.Time                  `json:"timestamp"`
	Doctor    *DoctorRegisteredEvent     `json:"doctor_registered,omitempty"`
	SlotAdded *AppointmentSlotAddedEvent `json:"slot_added,omitempty"`
	Booked    *AppointmentBookedEvent    `json:"booked,omitempty"`
}

// DoctorRegisteredEvent is emitted on every successful registration.
type DoctorRegisteredEvent struct {
	LicenseNumber string `json:"license_number"`
	Name          string `json:"name"`
	Principal     string `json:"principal"`
}

// AppointmentSlotAddedEvent is emitted when a doctor publishes a new slot.
type AppointmentSlotAddedEvent struct {
	LicenseNumber string `json:"license_number"`
	Date          string `json:"date"`
	Time          string `json:"time"`
}

// AppointmentBookedEvent is emitted when a slot transitions to booked.
type AppointmentBookedEvent struct {
	LicenseNumber string `json:"license_number"`
	SlotIndex     int    `json:"slot_index"`
	Principal     string `json:"principal"`
}
