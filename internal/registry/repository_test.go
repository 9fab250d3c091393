package registry

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/database"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/logger"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/types"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	assert.NoError(t, err)

	log := logger.New("error")
	store := NewPostgresStore(database.NewFromSQL(sqlDB, log), log)
	return store, mock, func() { sqlDB.Close() }
}

func TestPostgresStore_GetDoctor(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{
		"license_number", "principal", "name", "dob", "gender", "blood_group",
		"specialization", "email", "hospital", "password",
	}).AddRow("100001", "alice", "Dr. Alice", "1980-05-01", "F", "O+",
		"Cardiology", "alice@hospital.example", "General Hospital", "s3cret")

	mock.ExpectQuery(regexp.QuoteMeta("FROM doctors")).
		WithArgs("100001").
		WillReturnRows(rows)

	doctor, err := store.GetDoctor("100001")
	assert.NoError(t, err)
	assert.Equal(t, "Dr. Alice", doctor.Name)
	assert.Equal(t, "alice", doctor.Principal)
	assert.Equal(t, "s3cret", doctor.Password)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDoctor_Unknown(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM doctors")).
		WithArgs("999999").
		WillReturnRows(sqlmock.NewRows([]string{"license_number"}))

	doctor, err := store.GetDoctor("999999")
	assert.NoError(t, err)
	assert.Nil(t, doctor)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_HasDoctor(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM doctors")).
		WithArgs("100001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := store.HasDoctor("100001")
	assert.NoError(t, err)
	assert.True(t, exists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PrincipalRegistered(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM registered_principals")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	taken, err := store.PrincipalRegistered("alice")
	assert.NoError(t, err)
	assert.False(t, taken)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertDoctor(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO doctors")).
		WithArgs("100001", "alice", "Dr. Alice", "1980-05-01", "F", "O+",
			"Cardiology", "alice@hospital.example", "General Hospital", "s3cret").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registered_principals")).
		WithArgs("alice", "100001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO specialization_index")).
		WithArgs("100001").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.InsertDoctor(aliceDoctor())
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertDoctor_RollsBackOnFailure(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO doctors")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registered_principals")).
		WillReturnError(fmt.Errorf("duplicate key value"))
	mock.ExpectRollback()

	err := store.InsertDoctor(aliceDoctor())
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SpecializationIndex(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"license_number"}).
		AddRow("100001").
		AddRow("100002")
	mock.ExpectQuery(regexp.QuoteMeta("FROM specialization_index")).
		WillReturnRows(rows)

	index, err := store.SpecializationIndex()
	assert.NoError(t, err)
	assert.Equal(t, []string{"100001", "100002"}, index)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertGrant(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO permission_flags")).
		WithArgs("100001", "patient-7").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO permission_grants")).
		WithArgs("patient-7", "100001", "Dr. Alice").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.InsertGrant("patient-7", types.GrantedDoctor{
		LicenseNumber: "100001",
		Name:          "Dr. Alice",
	})
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_HasGrant(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM permission_flags")).
		WithArgs("100001", "patient-7").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	granted, err := store.HasGrant("100001", "patient-7")
	assert.NoError(t, err)
	assert.True(t, granted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GrantedDoctors_Empty(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM permission_grants")).
		WithArgs("patient-none").
		WillReturnRows(sqlmock.NewRows([]string{"license_number", "doctor_name"}))

	grants, err := store.GrantedDoctors("patient-none")
	assert.NoError(t, err)
	assert.NotNil(t, grants)
	assert.Empty(t, grants)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertSlot(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appointment_slots")).
		WithArgs("100001", "2026-09-10", "09:00").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.InsertSlot("100001", &types.AppointmentSlot{
		Date: "2026-09-10",
		Time: "09:00",
	})
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Slots(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"slot_date", "slot_time", "is_booked", "booked_by"}).
		AddRow("2026-09-10", "09:00", true, "bob").
		AddRow("2026-09-10", "10:00", false, "")
	mock.ExpectQuery(regexp.QuoteMeta("FROM appointment_slots")).
		WithArgs("100001").
		WillReturnRows(rows)

	slots, err := store.Slots("100001")
	assert.NoError(t, err)
	assert.Len(t, slots, 2)
	assert.True(t, slots[0].IsBooked)
	assert.Equal(t, "bob", slots[0].BookedBy)
	assert.False(t, slots[1].IsBooked)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkSlotBooked(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointment_slots")).
		WithArgs("100001", 0, "bob").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.MarkSlotBooked("100001", 0, "bob")
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkSlotBooked_NoSuchSlot(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointment_slots")).
		WithArgs("100001", 5, "bob").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkSlotBooked("100001", 5, "bob")
	assert.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeInvalidIndex))

	assert.NoError(t, mock.ExpectationsWereMet())
}
