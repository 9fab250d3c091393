package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the database schema for the registry's five logical
// structures. Positional columns preserve insertion order; there are no
// delete paths, so no soft-delete columns exist.
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	tables := []string{
		createDoctorsTable,
		createRegisteredPrincipalsTable,
		createSpecializationIndexTable,
		createPermissionFlagsTable,
		createPermissionGrantsTable,
		createAppointmentSlotsTable,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		createDoctorsIndexes,
		createPermissionGrantsIndexes,
		createAppointmentSlotsIndexes,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

// SQL DDL statements for table creation
const (
	createDoctorsTable = `
		CREATE TABLE IF NOT EXISTS doctors (
			license_number VARCHAR(50) PRIMARY KEY,
			principal VARCHAR(200) UNIQUE NOT NULL,
			name VARCHAR(200) NOT NULL,
			dob VARCHAR(50) NOT NULL,
			gender VARCHAR(20) NOT NULL,
			blood_group VARCHAR(10) NOT NULL,
			specialization VARCHAR(100) NOT NULL,
			email VARCHAR(200) NOT NULL,
			hospital VARCHAR(200) NOT NULL,
			password VARCHAR(200) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createRegisteredPrincipalsTable = `
		CREATE TABLE IF NOT EXISTS registered_principals (
			principal VARCHAR(200) PRIMARY KEY,
			license_number VARCHAR(50) NOT NULL REFERENCES doctors(license_number)
		);`

	createSpecializationIndexTable = `
		CREATE TABLE IF NOT EXISTS specialization_index (
			position BIGSERIAL PRIMARY KEY,
			license_number VARCHAR(50) NOT NULL REFERENCES doctors(license_number)
		);`

	createPermissionFlagsTable = `
		CREATE TABLE IF NOT EXISTS permission_flags (
			license_number VARCHAR(50) NOT NULL,
			patient_id VARCHAR(200) NOT NULL,
			PRIMARY KEY (license_number, patient_id)
		);`

	createPermissionGrantsTable = `
		CREATE TABLE IF NOT EXISTS permission_grants (
			patient_id VARCHAR(200) NOT NULL,
			position BIGSERIAL,
			license_number VARCHAR(50) NOT NULL,
			doctor_name VARCHAR(200) NOT NULL,
			PRIMARY KEY (patient_id, position)
		);`

	createAppointmentSlotsTable = `
		CREATE TABLE IF NOT EXISTS appointment_slots (
			license_number VARCHAR(50) NOT NULL,
			slot_index INTEGER NOT NULL,
			slot_date VARCHAR(50) NOT NULL,
			slot_time VARCHAR(50) NOT NULL,
			is_booked BOOLEAN NOT NULL DEFAULT FALSE,
			booked_by VARCHAR(200) NOT NULL DEFAULT '',
			PRIMARY KEY (license_number, slot_index)
		);`
)

// SQL DDL statements for index creation
const (
	createDoctorsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_doctors_specialization ON doctors(specialization);
		CREATE INDEX IF NOT EXISTS idx_doctors_principal ON doctors(principal);`

	createPermissionGrantsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_permission_grants_patient_id ON permission_grants(patient_id);`

	createAppointmentSlotsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_appointment_slots_license ON appointment_slots(license_number);`
)
