package types

// Doctor represents a registered practitioner identity record. Doctor records
// are immutable after registration except for slot state; the password field
// is the stored credential secret and must never leave the core.
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
	Password       string `json:"-"`
}

// View returns the externally visible projection of the doctor record,
// omitting the credential secret.
func (d *Doctor) View() *DoctorView {
	return &DoctorView{
		Principal:      d.Principal,
		Name:           d.Name,
		DOB:            d.DOB,
		Gender:         d.Gender,
		BloodGroup:     d.BloodGroup,
		Specialization: d.Specialization,
		LicenseNumber:  d.LicenseNumber,
		Email:          d.Email,
		Hospital:       d.Hospital,
	}
}

// DoctorView is the password-free projection of a Doctor record returned by
// lookup and search operations.
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

// GrantedDoctor is one entry in a patient's permission list: the license
// number and display name of a doctor allowed to access the patient's records.
type GrantedDoctor struct {
	LicenseNumber string `json:"license_number"`
	Name          string `json:"name"`
}

// AppointmentSlot is a bookable time window owned by a doctor. Date and time
// are opaque strings; the slot's identity is its positional index within the
// doctor's slot sequence, which is stable for the slot's lifetime. BookedBy
// is empty if and only if IsBooked is false.
type AppointmentSlot struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	IsBooked bool   `json:"is_booked"`
	BookedBy string `json:"booked_by,omitempty"`
}
