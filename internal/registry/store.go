package registry

import (
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/interfaces"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/types"
)

// grantKey identifies a (doctor, patient) permission edge.
type grantKey struct {
	license   string
	patientID string
}

// MemoryStore keeps the registry's five logical structures in process memory:
// doctors by license, the registered-principal set, permission membership
// flags plus per-patient grant lists, per-doctor slot sequences, and the
// specialization index. It performs no synchronization of its own; the
// registry service serializes access.
type MemoryStore struct {
	doctors    map[string]*types.Doctor
	principals map[string]string
	specIndex  []string
	grantFlags map[grantKey]bool
	grantLists map[string][]types.GrantedDoctor
	slots      map[string][]*types.AppointmentSlot
}

// NewMemoryStore creates an empty in-memory registry store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		doctors:    make(map[string]*types.Doctor),
		principals: make(map[string]string),
		grantFlags: make(map[grantKey]bool),
		grantLists: make(map[string][]types.GrantedDoctor),
		slots:      make(map[string][]*types.AppointmentSlot),
	}
}

var _ interfaces.RegistryStore = (*MemoryStore)(nil)

// GetDoctor returns the doctor record for a license number, or nil if the
// license is unknown.
func (s *MemoryStore) GetDoctor(license string) (*types.Doctor, error) {
	doctor, ok := s.doctors[license]
	if !ok {
		return nil, nil
	}
	copied := *doctor
	return &copied, nil
}

// HasDoctor reports whether a license number is registered.
func (s *MemoryStore) HasDoctor(license string) (bool, error) {
	_, ok := s.doctors[license]
	return ok, nil
}

// PrincipalRegistered reports whether a principal already owns a doctor record.
func (s *MemoryStore) PrincipalRegistered(principal string) (bool, error) {
	_, ok := s.principals[principal]
	return ok, nil
}

// InsertDoctor writes the doctor record, marks the owning principal, and
// appends the license number to the specialization index. All three writes
// land together; in-memory there is no failure point between them.
func (s *MemoryStore) InsertDoctor(doctor *types.Doctor) error {
	copied := *doctor
	s.doctors[doctor.LicenseNumber] = &copied
	s.principals[doctor.Principal] = doctor.LicenseNumber
	s.specIndex = append(s.specIndex, doctor.LicenseNumber)
	return nil
}

// SpecializationIndex returns all registered license numbers in registration
// order.
func (s *MemoryStore) SpecializationIndex() ([]string, error) {
	index := make([]string, len(s.specIndex))
	copy(index, s.specIndex)
	return index, nil
}

// HasGrant reports whether the (doctor, patient) membership flag is set.
func (s *MemoryStore) HasGrant(license, patientID string) (bool, error) {
	return s.grantFlags[grantKey{license, patientID}], nil
}

// InsertGrant sets the membership flag and appends the display-list entry in
// lockstep.
func (s *MemoryStore) InsertGrant(patientID string, grant types.GrantedDoctor) error {
	s.grantFlags[grantKey{grant.LicenseNumber, patientID}] = true
	s.grantLists[patientID] = append(s.grantLists[patientID], grant)
	return nil
}

// GrantedDoctors returns the patient's grant list in insertion order.
func (s *MemoryStore) GrantedDoctors(patientID string) ([]types.GrantedDoctor, error) {
	grants := make([]types.GrantedDoctor, len(s.grantLists[patientID]))
	copy(grants, s.grantLists[patientID])
	return grants, nil
}

// InsertSlot appends a slot to the doctor's slot sequence.
func (s *MemoryStore) InsertSlot(license string, slot *types.AppointmentSlot) error {
	copied := *slot
	s.slots[license] = append(s.slots[license], &copied)
	return nil
}

// Slots returns the doctor's full slot sequence in creation order. Unknown
// license numbers yield an empty sequence.
func (s *MemoryStore) Slots(license string) ([]*types.AppointmentSlot, error) {
	slots := make([]*types.AppointmentSlot, 0, len(s.slots[license]))
	for _, slot := range s.slots[license] {
		copied := *slot
		slots = append(slots, &copied)
	}
	return slots, nil
}

// MarkSlotBooked sets the booked flag and booking principal of the slot at
// the given index.
func (s *MemoryStore) MarkSlotBooked(license string, index int, principal string) error {
	sequence := s.slots[license]
	if index < 0 || index >= len(sequence) {
		return types.NewInvalidIndexError(license, index)
	}
	sequence[index].IsBooked = true
	sequence[index].BookedBy = principal
	return nil
}
