package registry

import (
	"database/sql"
	"fmt"

	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/database"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/interfaces"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/logger"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/types"
)

// PostgresStore implements the RegistryStore interface on PostgreSQL. The
// five logical structures map to the tables in pkg/database/schema.go.
// Multi-table writes run inside a transaction so registration and grants stay
// all-or-nothing; serialization of check-then-mutate sequences remains the
// service's responsibility.
type PostgresStore struct {
	db     *database.DB
	logger *logger.Logger
}

// NewPostgresStore creates a Postgres-backed registry store.
func NewPostgresStore(db *database.DB, log *logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log,
	}
}

var _ interfaces.RegistryStore = (*PostgresStore)(nil)

// GetDoctor retrieves a doctor record by license number, nil if unknown.
func (s *PostgresStore) GetDoctor(license string) (*types.Doctor, error) {
	query := `
		SELECT license_number, principal, name, dob, gender, blood_group,
		       specialization, email, hospital, password
		FROM doctors
		WHERE license_number = $1`

	doctor := &types.Doctor{}
	err := s.db.QueryRow(query, license).Scan(
		&doctor.LicenseNumber,
		&doctor.Principal,
		&doctor.Name,
		&doctor.DOB,
		&doctor.Gender,
		&doctor.BloodGroup,
		&doctor.Specialization,
		&doctor.Email,
		&doctor.Hospital,
		&doctor.Password,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		s.logger.WithLicense(license).WithError(err).Error("Failed to get doctor")
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}

	return doctor, nil
}

// HasDoctor reports whether a license number is registered.
func (s *PostgresStore) HasDoctor(license string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM doctors WHERE license_number = $1)`, license,
	).Scan(&exists)
	if err != nil {
		s.logger.WithLicense(license).WithError(err).Error("Failed to check doctor")
		return false, fmt.Errorf("failed to check doctor: %w", err)
	}
	return exists, nil
}

// PrincipalRegistered reports whether a principal already owns a doctor record.
func (s *PostgresStore) PrincipalRegistered(principal string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM registered_principals WHERE principal = $1)`, principal,
	).Scan(&exists)
	if err != nil {
		s.logger.WithError(err).Error("Failed to check principal")
		return false, fmt.Errorf("failed to check principal: %w", err)
	}
	return exists, nil
}

// InsertDoctor writes the doctor record, the principal mark, and the
// specialization index entry in one transaction.
func (s *PostgresStore) InsertDoctor(doctor *types.Doctor) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO doctors (
			license_number, principal, name, dob, gender, blood_group,
			specialization, email, hospital, password
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		doctor.LicenseNumber,
		doctor.Principal,
		doctor.Name,
		doctor.DOB,
		doctor.Gender,
		doctor.BloodGroup,
		doctor.Specialization,
		doctor.Email,
		doctor.Hospital,
		doctor.Password,
	)
	if err != nil {
		s.logger.WithLicense(doctor.LicenseNumber).WithError(err).Error("Failed to insert doctor")
		return fmt.Errorf("failed to insert doctor: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO registered_principals (principal, license_number) VALUES ($1, $2)`,
		doctor.Principal, doctor.LicenseNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to mark principal: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO specialization_index (license_number) VALUES ($1)`,
		doctor.LicenseNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to append specialization index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit registration: %w", err)
	}

	s.logger.WithLicense(doctor.LicenseNumber).Info("Inserted doctor record")
	return nil
}

// SpecializationIndex returns all registered license numbers in registration
// order.
func (s *PostgresStore) SpecializationIndex() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT license_number FROM specialization_index ORDER BY position ASC`,
	)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load specialization index")
		return nil, fmt.Errorf("failed to load specialization index: %w", err)
	}
	defer rows.Close()

	var index []string
	for rows.Next() {
		var license string
		if err := rows.Scan(&license); err != nil {
			return nil, fmt.Errorf("failed to scan specialization index: %w", err)
		}
		index = append(index, license)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating specialization index: %w", err)
	}

	return index, nil
}

// HasGrant reports whether the (doctor, patient) membership flag is set.
func (s *PostgresStore) HasGrant(license, patientID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM permission_flags WHERE license_number = $1 AND patient_id = $2)`,
		license, patientID,
	).Scan(&exists)
	if err != nil {
		s.logger.WithLicense(license).WithError(err).Error("Failed to check grant")
		return false, fmt.Errorf("failed to check grant: %w", err)
	}
	return exists, nil
}

// InsertGrant sets the membership flag and appends the display-list entry in
// one transaction.
func (s *PostgresStore) InsertGrant(patientID string, grant types.GrantedDoctor) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO permission_flags (license_number, patient_id) VALUES ($1, $2)`,
		grant.LicenseNumber, patientID,
	)
	if err != nil {
		s.logger.WithLicense(grant.LicenseNumber).WithError(err).Error("Failed to set grant flag")
		return fmt.Errorf("failed to set grant flag: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO permission_grants (patient_id, license_number, doctor_name) VALUES ($1, $2, $3)`,
		patientID, grant.LicenseNumber, grant.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to append grant list: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit grant: %w", err)
	}

	return nil
}

// GrantedDoctors returns the patient's grant list in insertion order.
func (s *PostgresStore) GrantedDoctors(patientID string) ([]types.GrantedDoctor, error) {
	rows, err := s.db.Query(`
		SELECT license_number, doctor_name
		FROM permission_grants
		WHERE patient_id = $1
		ORDER BY position ASC`,
		patientID,
	)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load grant list")
		return nil, fmt.Errorf("failed to load grant list: %w", err)
	}
	defer rows.Close()

	grants := []types.GrantedDoctor{}
	for rows.Next() {
		var grant types.GrantedDoctor
		if err := rows.Scan(&grant.LicenseNumber, &grant.Name); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, grant)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grants: %w", err)
	}

	return grants, nil
}

// InsertSlot appends a slot to the doctor's slot sequence. The slot index is
// the next position in the sequence; indices are never reused or compacted.
func (s *PostgresStore) InsertSlot(license string, slot *types.AppointmentSlot) error {
	_, err := s.db.Exec(`
		INSERT INTO appointment_slots (license_number, slot_index, slot_date, slot_time, is_booked, booked_by)
		SELECT $1, COALESCE(MAX(slot_index) + 1, 0), $2, $3, FALSE, ''
		FROM appointment_slots
		WHERE license_number = $1`,
		license, slot.Date, slot.Time,
	)
	if err != nil {
		s.logger.WithLicense(license).WithError(err).Error("Failed to insert slot")
		return fmt.Errorf("failed to insert slot: %w", err)
	}
	return nil
}

// Slots returns the doctor's full slot sequence in creation order. Unknown
// license numbers yield an empty sequence.
func (s *PostgresStore) Slots(license string) ([]*types.AppointmentSlot, error) {
	rows, err := s.db.Query(`
		SELECT slot_date, slot_time, is_booked, booked_by
		FROM appointment_slots
		WHERE license_number = $1
		ORDER BY slot_index ASC`,
		license,
	)
	if err != nil {
		s.logger.WithLicense(license).WithError(err).Error("Failed to load slots")
		return nil, fmt.Errorf("failed to load slots: %w", err)
	}
	defer rows.Close()

	slots := []*types.AppointmentSlot{}
	for rows.Next() {
		slot := &types.AppointmentSlot{}
		if err := rows.Scan(&slot.Date, &slot.Time, &slot.IsBooked, &slot.BookedBy); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slots: %w", err)
	}

	return slots, nil
}

// MarkSlotBooked sets the booked flag and booking principal of the slot at
// the given index.
func (s *PostgresStore) MarkSlotBooked(license string, index int, principal string) error {
	result, err := s.db.Exec(`
		UPDATE appointment_slots
		SET is_booked = TRUE, booked_by = $3
		WHERE license_number = $1 AND slot_index = $2`,
		license, index, principal,
	)
	if err != nil {
		s.logger.WithLicense(license).WithError(err).Error("Failed to mark slot booked")
		return fmt.Errorf("failed to mark slot booked: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return types.NewInvalidIndexError(license, index)
	}

	return nil
}
