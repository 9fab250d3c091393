package interfaces

import (
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/types"
)

// RegistryService defines the operations of the practitioner registry. Every
// call is one atomic unit of work: mutating operations are serialized against
// each other, and read-only operations never observe a half-applied mutation.
type RegistryService interface {
	// Registration and identity
	Register(doctor *types.Doctor) error
	IsRegistered(license string) (bool, error)
	ValidateCredential(license, password string) (bool, error)
	ValidatePrincipal(principal, license string) (bool, error)
	GetDetails(license string) (*types.DoctorView, error)

	// Record-access permissions
	GrantPermission(license, patientID, doctorName string) error
	IsPermissionGranted(license, patientID string) (bool, error)
	ListGrantedDoctors(patientID string) ([]types.GrantedDoctor, error)

	// Discovery
	FindBySpecialization(specialization string) ([]*types.DoctorView, error)

	// Appointment slots
	AddAppointmentSlot(principal, license, date, time string) error
	ListSlots(license string) ([]*types.AppointmentSlot, error)
	BookSlot(license string, slotIndex int, principal string) error
}

// RegistryStore defines the persistence contract for the registry's five
// logical structures: doctors by license, the registered-principal set,
// per-pair permission flags plus per-patient grant lists, per-doctor slot
// sequences, and the specialization index. Stores do not enforce business
// rules; serialization of check-then-mutate sequences is the service's
// responsibility. Multi-structure writes must be all-or-nothing.
type RegistryStore interface {
	// Doctors and principals
	GetDoctor(license string) (*types.Doctor, error)
	HasDoctor(license string) (bool, error)
	PrincipalRegistered(principal string) (bool, error)
	// InsertDoctor writes the doctor record, marks the owning principal and
	// appends the license number to the specialization index in one
	// all-or-nothing operation.
	InsertDoctor(doctor *types.Doctor) error

	// Specialization index, in registration order
	SpecializationIndex() ([]string, error)

	// Permission grants
	HasGrant(license, patientID string) (bool, error)
	// InsertGrant sets the (doctor, patient) membership flag and appends the
	// display-list entry in lockstep.
	InsertGrant(patientID string, grant types.GrantedDoctor) error
	GrantedDoctors(patientID string) ([]types.GrantedDoctor, error)

	// Appointment slots
	InsertSlot(license string, slot *types.AppointmentSlot) error
	Slots(license string) ([]*types.AppointmentSlot, error)
	// MarkSlotBooked sets the booked flag and booking principal of the slot at
	// the given index. The caller has already validated the index and flag.
	MarkSlotBooked(license string, index int, principal string) error
}

// EventSink consumes the notification records emitted by mutating registry
// operations.
type EventSink interface {
	Emit(event *types.RegistryEvent)
}
