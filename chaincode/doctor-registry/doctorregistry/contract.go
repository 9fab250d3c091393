package doctorregistry

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// SmartContract provides functions for managing the practitioner registry
type SmartContract struct {
	contractapi.Contract
}

// Doctor represents a registered practitioner identity record
type Doctor struct {
	Principal      string `json:"principal"`
	Name           string `json:"name"`
	DOB            string `json:"dob"`
	Gender         string `json:"gender"`
	BloodGroup     string `json:"blood_group"`
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"license_number"`
	Email          string `json:"email"`
	Hospital       string `json:"hospital"`
	Password       string `json:"password"`
}

// DoctorView is the externally visible projection of a doctor record, with
// the credential secret omitted
type DoctorView struct {
	Principal      string `json:"principal"`
	Name           string `json:"name"`
	DOB            string `json:"dob"`
	Gender         string `json:"gender"`
	BloodGroup     string `json:"blood_group"`
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"license_number"`
	Email          string `json:"email"`
	Hospital       string `json:"hospital"`
}

// GrantedDoctor is one entry in a patient's permission list
type GrantedDoctor struct {
	LicenseNumber string `json:"license_number"`
	Name          string `json:"name"`
}

// AppointmentSlot is a bookable time window owned by a doctor. Its identity
// is its positional index within the doctor's slot sequence.
type AppointmentSlot struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	IsBooked bool   `json:"is_booked"`
	BookedBy string `json:"booked_by"`
}

// World-state key prefixes for the registry's logical structures
const (
	doctorPrefix    = "doctor_"
	principalPrefix = "principal_"
	grantFlagPrefix = "grantflag_"
	grantsPrefix    = "grants_"
	slotsPrefix     = "slots_"
	specIndexKey    = "specindex"
)

// Event names emitted for external observers
const (
	eventDoctorRegistered     = "DoctorRegistered"
	eventAppointmentSlotAdded = "AppointmentSlotAdded"
	eventAppointmentBooked    = "AppointmentBooked"
)

// RegisterDoctor registers the calling identity as a doctor. The license
// number must be unused and the caller must not already own a record; the
// ledger transaction makes the multi-key write all-or-nothing.
func (s *SmartContract) RegisterDoctor(ctx contractapi.TransactionContextInterface, name, dob, gender, bloodGroup, specialization, licenseNumber, email, hospital, password string) error {
	principal, err := s.getCallerIdentity(ctx)
	if err != nil {
		return fmt.Errorf("failed to get caller identity: %v", err)
	}

	existing, err := ctx.GetStub().GetState(doctorPrefix + licenseNumber)
	if err != nil {
		return fmt.Errorf("failed to read from world state: %v", err)
	}
	if existing != nil {
		return fmt.Errorf("ALREADY_REGISTERED: license number %s is already registered", licenseNumber)
	}

	existingPrincipal, err := ctx.GetStub().GetState(principalPrefix + principal)
	if err != nil {
		return fmt.Errorf("failed to read from world state: %v", err)
	}
	if existingPrincipal != nil {
		return fmt.Errorf("ALREADY_REGISTERED: principal %s already owns a doctor record", principal)
	}

	doctor := Doctor{
		Principal:      principal,
		Name:           name,
		DOB:            dob,
		Gender:         gender,
		BloodGroup:     bloodGroup,
		Specialization: specialization,
		LicenseNumber:  licenseNumber,
		Email:          email,
		Hospital:       hospital,
		Password:       password,
	}

	doctorJSON, err := json.Marshal(doctor)
	if err != nil {
		return err
	}

	if err := ctx.GetStub().PutState(doctorPrefix+licenseNumber, doctorJSON); err != nil {
		return fmt.Errorf("failed to put doctor to world state: %v", err)
	}

	if err := ctx.GetStub().PutState(principalPrefix+principal, []byte(licenseNumber)); err != nil {
		return fmt.Errorf("failed to mark principal: %v", err)
	}

	index, err := s.readSpecializationIndex(ctx)
	if err != nil {
		return err
	}
	index = append(index, licenseNumber)
	if err := s.writeSpecializationIndex(ctx, index); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{
		"license_number": licenseNumber,
		"name":           name,
		"principal":      principal,
	})
	if err != nil {
		return err
	}
	if err := ctx.GetStub().SetEvent(eventDoctorRegistered, payload); err != nil {
		return fmt.Errorf("failed to set event: %v", err)
	}

	return nil
}

// IsRegistered reports whether a license number is registered. Never fails
// for unknown license numbers.
func (s *SmartContract) IsRegistered(ctx contractapi.TransactionContextInterface, licenseNumber string) (bool, error) {
	doctorJSON, err := ctx.GetStub().GetState(doctorPrefix + licenseNumber)
	if err != nil {
		return false, fmt.Errorf("failed to read from world state: %v", err)
	}
	return doctorJSON != nil, nil
}

// ValidateCredential compares the supplied password against the stored
// secret. The comparison runs over SHA-256 digests in constant time so the
// secret never feeds a variable-time comparison.
func (s *SmartContract) ValidateCredential(ctx contractapi.TransactionContextInterface, licenseNumber, password string) (bool, error) {
	doctor, err := s.getDoctor(ctx, licenseNumber)
	if err != nil {
		return false, err
	}
	if doctor == nil {
		return false, fmt.Errorf("NOT_REGISTERED: license number %s is not registered", licenseNumber)
	}

	storedSum := sha256.Sum256([]byte(doctor.Password))
	suppliedSum := sha256.Sum256([]byte(password))
	return subtle.ConstantTimeCompare(storedSum[:], suppliedSum[:]) == 1, nil
}

// ValidatePrincipal reports whether the supplied principal owns the doctor
// record
func (s *SmartContract) ValidatePrincipal(ctx contractapi.TransactionContextInterface, principal, licenseNumber string) (bool, error) {
	doctor, err := s.getDoctor(ctx, licenseNumber)
	if err != nil {
		return false, err
	}
	if doctor == nil {
		return false, fmt.Errorf("NOT_REGISTERED: license number %s is not registered", licenseNumber)
	}
	return doctor.Principal == principal, nil
}

// GetDetails returns the doctor's externally visible view, omitting the
// credential secret
func (s *SmartContract) GetDetails(ctx contractapi.TransactionContextInterface, licenseNumber string) (*DoctorView, error) {
	doctor, err := s.getDoctor(ctx, licenseNumber)
	if err != nil {
		return nil, err
	}
	if doctor == nil {
		return nil, fmt.Errorf("NOT_REGISTERED: license number %s is not registered", licenseNumber)
	}

	return &DoctorView{
		Principal:      doctor.Principal,
		Name:           doctor.Name,
		DOB:            doctor.DOB,
		Gender:         doctor.Gender,
		BloodGroup:     doctor.BloodGroup,
		Specialization: doctor.Specialization,
		LicenseNumber:  doctor.LicenseNumber,
		Email:          doctor.Email,
		Hospital:       doctor.Hospital,
	}, nil
}

// GrantPermission records that the doctor may access the patient's records.
// The membership flag and the display list are written in lockstep; the flag
// is the authoritative existence test.
func (s *SmartContract) GrantPermission(ctx contractapi.TransactionContextInterface, licenseNumber, patientID, doctorName string) error {
	grants, err := s.readGrants(ctx, patientID)
	if err != nil {
		return err
	}

	for _, grant := range grants {
		if grant.LicenseNumber == licenseNumber {
			return fmt.Errorf("ALREADY_GRANTED: doctor %s already has access to patient %s", licenseNumber, patientID)
		}
	}

	grants = append(grants, GrantedDoctor{LicenseNumber: licenseNumber, Name: doctorName})
	grantsJSON, err := json.Marshal(grants)
	if err != nil {
		return err
	}
	if err := ctx.GetStub().PutState(grantsPrefix+patientID, grantsJSON); err != nil {
		return fmt.Errorf("failed to put grant list to world state: %v", err)
	}

	flagKey := grantFlagPrefix + licenseNumber + "_" + patientID
	if err := ctx.GetStub().PutState(flagKey, []byte("true")); err != nil {
		return fmt.Errorf("failed to put grant flag to world state: %v", err)
	}

	return nil
}

// IsPermissionGranted reports whether the (doctor, patient) membership flag
// is set. Never fails.
func (s *SmartContract) IsPermissionGranted(ctx contractapi.TransactionContextInterface, licenseNumber, patientID string) (bool, error) {
	flagJSON, err := ctx.GetStub().GetState(grantFlagPrefix + licenseNumber + "_" + patientID)
	if err != nil {
		return false, fmt.Errorf("failed to read from world state: %v", err)
	}
	return flagJSON != nil, nil
}

// ListGrantedDoctors returns the patient's grant list in insertion order,
// empty for patients with no grants
func (s *SmartContract) ListGrantedDoctors(ctx contractapi.TransactionContextInterface, patientID string) ([]GrantedDoctor, error) {
	return s.readGrants(ctx, patientID)
}

// FindBySpecialization returns all doctors whose specialization exactly
// equals the query, in registration order. Two passes over the
// specialization index: one to count and pre-size, one to collect. Matching
// is exact and case-sensitive.
func (s *SmartContract) FindBySpecialization(ctx contractapi.TransactionContextInterface, specialization string) ([]*DoctorView, error) {
	index, err := s.readSpecializationIndex(ctx)
	if err != nil {
		return nil, err
	}

	count := 0
	for _, licenseNumber := range index {
		doctor, err := s.getDoctor(ctx, licenseNumber)
		if err != nil {
			return nil, err
		}
		if doctor != nil && doctor.Specialization == specialization {
			count++
		}
	}

	results := make([]*DoctorView, 0, count)
	for _, licenseNumber := range index {
		doctor, err := s.getDoctor(ctx, licenseNumber)
		if err != nil {
			return nil, err
		}
		if doctor != nil && doctor.Specialization == specialization {
			view, err := s.GetDetails(ctx, licenseNumber)
			if err != nil {
				return nil, err
			}
			results = append(results, view)
		}
	}

	return results, nil
}

// AddAppointmentSlot appends a new unbooked slot to the doctor's slot
// sequence. Restricted to the doctor's owning principal. Date and time are
// opaque strings with no calendar validation.
func (s *SmartContract) AddAppointmentSlot(ctx contractapi.TransactionContextInterface, licenseNumber, date, time string) error {
	doctor, err := s.getDoctor(ctx, licenseNumber)
	if err != nil {
		return err
	}
	if doctor == nil {
		return fmt.Errorf("NOT_REGISTERED: license number %s is not registered", licenseNumber)
	}

	principal, err := s.getCallerIdentity(ctx)
	if err != nil {
		return fmt.Errorf("failed to get caller identity: %v", err)
	}
	if doctor.Principal != principal {
		return fmt.Errorf("UNAUTHORIZED: principal %s does not own doctor %s", principal, licenseNumber)
	}

	slots, err := s.readSlots(ctx, licenseNumber)
	if err != nil {
		return err
	}
	slots = append(slots, AppointmentSlot{Date: date, Time: time})

	if err := s.writeSlots(ctx, licenseNumber, slots); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{
		"license_number": licenseNumber,
		"date":           date,
		"time":           time,
	})
	if err != nil {
		return err
	}
	if err := ctx.GetStub().SetEvent(eventAppointmentSlotAdded, payload); err != nil {
		return fmt.Errorf("failed to set event: %v", err)
	}

	return nil
}

// ListSlots returns the doctor's full slot sequence in creation order.
// Unknown license numbers yield an empty sequence, not an error.
func (s *SmartContract) ListSlots(ctx contractapi.TransactionContextInterface, licenseNumber string) ([]AppointmentSlot, error) {
	return s.readSlots(ctx, licenseNumber)
}

// BookSlot books the slot at slotIndex for the calling identity. The ledger
// serializes transactions, so the booked-flag check and the write cannot
// interleave with another booking. There is deliberately no authorization
// check on who may book an open slot. Once booked, a slot stays booked.
func (s *SmartContract) BookSlot(ctx contractapi.TransactionContextInterface, licenseNumber string, slotIndex int) error {
	slots, err := s.readSlots(ctx, licenseNumber)
	if err != nil {
		return err
	}

	if slotIndex < 0 || slotIndex >= len(slots) {
		return fmt.Errorf("INVALID_INDEX: slot index %d is out of range for doctor %s", slotIndex, licenseNumber)
	}
	if slots[slotIndex].IsBooked {
		return fmt.Errorf("ALREADY_BOOKED: slot %d of doctor %s is already booked", slotIndex, licenseNumber)
	}

	principal, err := s.getCallerIdentity(ctx)
	if err != nil {
		return fmt.Errorf("failed to get caller identity: %v", err)
	}

	slots[slotIndex].IsBooked = true
	slots[slotIndex].BookedBy = principal

	if err := s.writeSlots(ctx, licenseNumber, slots); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"license_number": licenseNumber,
		"slot_index":     slotIndex,
		"principal":      principal,
	})
	if err != nil {
		return err
	}
	if err := ctx.GetStub().SetEvent(eventAppointmentBooked, payload); err != nil {
		return fmt.Errorf("failed to set event: %v", err)
	}

	return nil
}

// Helper functions

// getCallerIdentity gets the identity of the transaction caller
func (s *SmartContract) getCallerIdentity(ctx contractapi.TransactionContextInterface) (string, error) {
	clientIdentity := ctx.GetClientIdentity()
	id, err := clientIdentity.GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client ID: %v", err)
	}
	return id, nil
}

// getDoctor reads a doctor record, nil if the license number is unknown
func (s *SmartContract) getDoctor(ctx contractapi.TransactionContextInterface, licenseNumber string) (*Doctor, error) {
	doctorJSON, err := ctx.GetStub().GetState(doctorPrefix + licenseNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to read from world state: %v", err)
	}
	if doctorJSON == nil {
		return nil, nil
	}

	var doctor Doctor
	if err := json.Unmarshal(doctorJSON, &doctor); err != nil {
		return nil, fmt.Errorf("failed to unmarshal doctor: %v", err)
	}
	return &doctor, nil
}

// readSpecializationIndex reads the ordered list of registered license numbers
func (s *SmartContract) readSpecializationIndex(ctx contractapi.TransactionContextInterface) ([]string, error) {
	indexJSON, err := ctx.GetStub().GetState(specIndexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read from world state: %v", err)
	}
	if indexJSON == nil {
		return []string{}, nil
	}

	var index []string
	if err := json.Unmarshal(indexJSON, &index); err != nil {
		return nil, fmt.Errorf("failed to unmarshal specialization index: %v", err)
	}
	return index, nil
}

// writeSpecializationIndex writes the ordered list of registered license numbers
func (s *SmartContract) writeSpecializationIndex(ctx contractapi.TransactionContextInterface, index []string) error {
	indexJSON, err := json.Marshal(index)
	if err != nil {
		return err
	}
	if err := ctx.GetStub().PutState(specIndexKey, indexJSON); err != nil {
		return fmt.Errorf("failed to put specialization index to world state: %v", err)
	}
	return nil
}

// readGrants reads a patient's grant list, empty if none
func (s *SmartContract) readGrants(ctx contractapi.TransactionContextInterface, patientID string) ([]GrantedDoctor, error) {
	grantsJSON, err := ctx.GetStub().GetState(grantsPrefix + patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to read from world state: %v", err)
	}
	if grantsJSON == nil {
		return []GrantedDoctor{}, nil
	}

	var grants []GrantedDoctor
	if err := json.Unmarshal(grantsJSON, &grants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grant list: %v", err)
	}
	return grants, nil
}

// readSlots reads a doctor's slot sequence, empty if none
func (s *SmartContract) readSlots(ctx contractapi.TransactionContextInterface, licenseNumber string) ([]AppointmentSlot, error) {
	slotsJSON, err := ctx.GetStub().GetState(slotsPrefix + licenseNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to read from world state: %v", err)
	}
	if slotsJSON == nil {
		return []AppointmentSlot{}, nil
	}

	var slots []AppointmentSlot
	if err := json.Unmarshal(slotsJSON, &slots); err != nil {
		return nil, fmt.Errorf("failed to unmarshal slots: %v", err)
	}
	return slots, nil
}

// writeSlots writes a doctor's slot sequence
func (s *SmartContract) writeSlots(ctx contractapi.TransactionContextInterface, licenseNumber string, slots []AppointmentSlot) error {
	slotsJSON, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	if err := ctx.GetStub().PutState(slotsPrefix+licenseNumber, slotsJSON); err != nil {
		return fmt.Errorf("failed to put slots to world state: %v", err)
	}
	return nil
}
