package registry

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/interfaces"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/logger"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/monitoring"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/types"
)

// Registry implements the RegistryService interface over an injected store.
// A single RWMutex reproduces the ledger execution contract: mutating
// operations are fully serialized, read-only operations may run concurrently
// but never observe a half-applied mutation.
type Registry struct {
	logger *logger.Logger
	store  interfaces.RegistryStore
	events interfaces.EventSink
	mu     sync.RWMutex
}

// New creates a registry service over the given store and event sink.
func New(store interfaces.RegistryStore, events interfaces.EventSink, log *logger.Logger) *Registry {
	return &Registry{
		logger: log,
		store:  store,
		events: events,
	}
}

var _ interfaces.RegistryService = (*Registry)(nil)

// Register inserts a new doctor record. Both uniqueness constraints are
// checked first: the license number must be unused and the owning principal
// must not already hold a record. On success the specialization index grows
// by one and a DoctorRegistered event is emitted. No partial state is ever
// visible after a failure.
func (r *Registry) Register(doctor *types.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.instrument("register", func() error {
		exists, err := r.store.HasDoctor(doctor.LicenseNumber)
		if err != nil {
			return types.NewInternalError("failed to check license number", err)
		}
		if exists {
			return types.NewAlreadyRegisteredError(
				fmt.Sprintf("license number %s is already registered", doctor.LicenseNumber))
		}

		taken, err := r.store.PrincipalRegistered(doctor.Principal)
		if err != nil {
			return types.NewInternalError("failed to check principal", err)
		}
		if taken {
			return types.NewAlreadyRegisteredError(
				fmt.Sprintf("principal %s already owns a doctor record", doctor.Principal))
		}

		if err := r.store.InsertDoctor(doctor); err != nil {
			return types.NewInternalError("failed to insert doctor record", err)
		}

		r.logger.Audit(doctor.Principal, "register", doctor.LicenseNumber, true, map[string]interface{}{
			"specialization": doctor.Specialization,
		})
		r.emit(&types.RegistryEvent{
			Type: types.EventDoctorRegistered,
			Doctor: &types.DoctorRegisteredEvent{
				LicenseNumber: doctor.LicenseNumber,
				Name:          doctor.Name,
				Principal:     doctor.Principal,
			},
		})
		return nil
	})
}

// IsRegistered reports whether a license number is registered. Never fails
// for unknown license numbers.
func (r *Registry) IsRegistered(license string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exists, err := r.store.HasDoctor(license)
	if err != nil {
		return false, types.NewInternalError("failed to check license number", err)
	}
	return exists, nil
}

// ValidateCredential compares the supplied password against the stored
// secret. Fails with NotRegistered for unknown license numbers. The
// comparison itself is isolated in compareCredential. No rate limiting is
// applied.
func (r *Registry) ValidateCredential(license, password string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doctor, err := r.store.GetDoctor(license)
	if err != nil {
		return false, types.NewInternalError("failed to load doctor record", err)
	}
	if doctor == nil {
		return false, types.NewNotRegisteredError(license)
	}

	ok := compareCredential(doctor.Password, password)
	r.logger.Audit("", "validate_credential", license, ok, nil)
	return ok, nil
}

// compareCredential compares the stored secret with the supplied password in
// constant form, via SHA-256 digests so the secret itself never feeds a
// variable-time comparison. The secret is stored in clear; a hardened variant
// can swap a salted-hash comparison in here without touching call sites.
func compareCredential(stored, supplied string) bool {
	storedSum := sha256.Sum256([]byte(stored))
	suppliedSum := sha256.Sum256([]byte(supplied))
	return subtle.ConstantTimeCompare(storedSum[:], suppliedSum[:]) == 1
}

// ValidatePrincipal reports whether the supplied principal owns the doctor
// record. Fails with NotRegistered for unknown license numbers.
func (r *Registry) ValidatePrincipal(principal, license string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doctor, err := r.store.GetDoctor(license)
	if err != nil {
		return false, types.NewInternalError("failed to load doctor record", err)
	}
	if doctor == nil {
		return false, types.NewNotRegisteredError(license)
	}
	return doctor.Principal == principal, nil
}

// GetDetails returns the doctor's externally visible view, omitting the
// credential secret. Fails with NotRegistered for unknown license numbers.
func (r *Registry) GetDetails(license string) (*types.DoctorView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doctor, err := r.store.GetDoctor(license)
	if err != nil {
		return nil, types.NewInternalError("failed to load doctor record", err)
	}
	if doctor == nil {
		return nil, types.NewNotRegisteredError(license)
	}
	return doctor.View(), nil
}

// GrantPermission records that the doctor may access the patient's records.
// Fails with AlreadyGranted if the pair already has a grant. The membership
// flag and the display list are written in lockstep; the flag is the
// authoritative existence test, the list a secondary display index.
func (r *Registry) GrantPermission(license, patientID, doctorName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.instrument("grant_permission", func() error {
		grants, err := r.store.GrantedDoctors(patientID)
		if err != nil {
			return types.NewInternalError("failed to load grant list", err)
		}
		for _, grant := range grants {
			if grant.LicenseNumber == license {
				return types.NewAlreadyGrantedError(license, patientID)
			}
		}

		err = r.store.InsertGrant(patientID, types.GrantedDoctor{
			LicenseNumber: license,
			Name:          doctorName,
		})
		if err != nil {
			return types.NewInternalError("failed to insert grant", err)
		}

		r.logger.Audit("", "grant_permission", license, true, map[string]interface{}{
			"patient_id": patientID,
		})
		return nil
	})
}

// IsPermissionGranted reports whether the (doctor, patient) membership flag
// is set. Never fails.
func (r *Registry) IsPermissionGranted(license, patientID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	granted, err := r.store.HasGrant(license, patientID)
	if err != nil {
		return false, types.NewInternalError("failed to check grant", err)
	}
	return granted, nil
}

// ListGrantedDoctors returns the patient's grant list in insertion order,
// most-recently-granted last. Empty for patients with no grants.
func (r *Registry) ListGrantedDoctors(patientID string) ([]types.GrantedDoctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	grants, err := r.store.GrantedDoctors(patientID)
	if err != nil {
		return nil, types.NewInternalError("failed to load grant list", err)
	}
	return grants, nil
}

// FindBySpecialization returns all doctors whose specialization exactly
// equals the query, in registration order. Two passes over the
// specialization index: the first counts matches to pre-size the result, the
// second collects them. Matching is exact and case-sensitive.
func (r *Registry) FindBySpecialization(specialization string) ([]*types.DoctorView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	index, err := r.store.SpecializationIndex()
	if err != nil {
		return nil, types.NewInternalError("failed to load specialization index", err)
	}

	count := 0
	for _, license := range index {
		doctor, err := r.store.GetDoctor(license)
		if err != nil {
			return nil, types.NewInternalError("failed to load doctor record", err)
		}
		if doctor != nil && doctor.Specialization == specialization {
			count++
		}
	}

	results := make([]*types.DoctorView, 0, count)
	for _, license := range index {
		doctor, err := r.store.GetDoctor(license)
		if err != nil {
			return nil, types.NewInternalError("failed to load doctor record", err)
		}
		if doctor != nil && doctor.Specialization == specialization {
			results = append(results, doctor.View())
		}
	}

	return results, nil
}

// AddAppointmentSlot appends a new unbooked slot to the doctor's slot
// sequence. Restricted to the doctor's owning principal. Date and time are
// opaque strings; no calendar validation or overlap detection is performed.
func (r *Registry) AddAppointmentSlot(principal, license, date, slotTime string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.instrument("add_appointment_slot", func() error {
		doctor, err := r.store.GetDoctor(license)
		if err != nil {
			return types.NewInternalError("failed to load doctor record", err)
		}
		if doctor == nil {
			return types.NewNotRegisteredError(license)
		}
		if doctor.Principal != principal {
			return types.NewUnauthorizedError(
				fmt.Sprintf("principal %s does not own doctor %s", principal, license))
		}

		err = r.store.InsertSlot(license, &types.AppointmentSlot{
			Date: date,
			Time: slotTime,
		})
		if err != nil {
			return types.NewInternalError("failed to insert slot", err)
		}

		r.logger.Audit(principal, "add_appointment_slot", license, true, map[string]interface{}{
			"date": date,
			"time": slotTime,
		})
		r.emit(&types.RegistryEvent{
			Type: types.EventAppointmentSlotAdded,
			SlotAdded: &types.AppointmentSlotAddedEvent{
				LicenseNumber: license,
				Date:          date,
				Time:          slotTime,
			},
		})
		return nil
	})
}

// ListSlots returns the doctor's full slot sequence in creation order,
// booked and unbooked alike. Unknown license numbers yield an empty sequence
// rather than NotRegistered, an intentional asymmetry preserved for
// compatibility.
func (r *Registry) ListSlots(license string) ([]*types.AppointmentSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slots, err := r.store.Slots(license)
	if err != nil {
		return nil, types.NewInternalError("failed to load slots", err)
	}
	return slots, nil
}

// BookSlot books the slot at slotIndex for the given principal. Fails with
// InvalidIndex out of bounds and AlreadyBooked for an already-booked slot;
// the check and the set happen under the same write lock, so no other
// operation can observe the slot in between. Once booked, a slot is booked
// forever. Any caller may book any open slot: there is deliberately no
// authorization check here.
func (r *Registry) BookSlot(license string, slotIndex int, principal string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.instrument("book_slot", func() error {
		slots, err := r.store.Slots(license)
		if err != nil {
			return types.NewInternalError("failed to load slots", err)
		}
		if slotIndex < 0 || slotIndex >= len(slots) {
			return types.NewInvalidIndexError(license, slotIndex)
		}
		if slots[slotIndex].IsBooked {
			return types.NewAlreadyBookedError(license, slotIndex)
		}

		if err := r.store.MarkSlotBooked(license, slotIndex, principal); err != nil {
			return types.NewInternalError("failed to mark slot booked", err)
		}

		r.logger.Audit(principal, "book_slot", license, true, map[string]interface{}{
			"slot_index": slotIndex,
		})
		r.emit(&types.RegistryEvent{
			Type: types.EventAppointmentBooked,
			Booked: &types.AppointmentBookedEvent{
				LicenseNumber: license,
				SlotIndex:     slotIndex,
				Principal:     principal,
			},
		})
		return nil
	})
}

// emit forwards a notification record to the event sink, if one is attached.
func (r *Registry) emit(event *types.RegistryEvent) {
	if r.events != nil {
		r.events.Emit(event)
	}
}

// instrument runs a mutating operation and records its outcome and duration.
func (r *Registry) instrument(operation string, fn func() error) error {
	start := time.Now()
	err := fn()

	outcome := "success"
	if err != nil {
		outcome = types.ErrorCode(err)
		r.logger.WithError(err).WithField("operation", operation).Warn("Registry operation failed")
	}
	monitoring.RecordOperation(operation, outcome, time.Since(start))

	return err
}
