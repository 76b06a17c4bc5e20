package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Role string

const (
	RoleAdmin         Role = "Admin"
	RoleDoctor        Role = "Doctor"
	RoleReceptionist  Role = "Receptionist"
	RoleLabTechnician Role = "LabTechnician"
	RolePatient       Role = "Patient"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleReceptionist, RoleLabTechnician, RolePatient:
		return true
	}
	return false
}

// RequiresApproval reports whether accounts of this role stay locked until
// an admin approves them.
func (r Role) RequiresApproval() bool {
	return r == RoleDoctor || r == RoleReceptionist || r == RoleLabTechnician
}

// Operation names a protected action.
type Operation string

const (
	OpListPendingStaff  Operation = "staff.list-pending"
	OpApproveStaff      Operation = "staff.approve"
	OpRejectStaff       Operation = "staff.reject"
	OpListUsers         Operation = "staff.list-users"
	OpBookAppointment   Operation = "appointment.book"
	OpListDoctorAppts   Operation = "appointment.list-doctor"
	OpListPatientAppts  Operation = "appointment.list-patient"
	OpCompleteAppt      Operation = "appointment.complete"
	OpReadInbox         Operation = "inbox.read"
	OpViewPatientRecord Operation = "patient.view-record"
	OpLookupPatient     Operation = "patient.lookup"
	OpUpdateOwnProfile  Operation = "patient.update-profile"
	OpRecordTreatment   Operation = "patient.record-treatment"
	OpAddLabReport      Operation = "patient.add-lab-report"
	OpUpdateBilling     Operation = "patient.update-billing"
	OpIssuePrescription Operation = "prescription.issue"
	OpFetchPrescription Operation = "prescription.fetch"
)

// Policy maps each operation to the roles allowed to perform it. Pairs not
// listed are denied.
type Policy map[Operation][]Role

var staffRoles = []Role{RoleAdmin, RoleDoctor, RoleReceptionist, RoleLabTechnician}

func DefaultPolicy() Policy {
	return Policy{
		OpListPendingStaff: {RoleAdmin},
		OpApproveStaff:     {RoleAdmin},
		OpRejectStaff:      {RoleAdmin},
		OpListUsers:        {RoleAdmin},

		OpBookAppointment:  {RoleAdmin, RoleDoctor, RoleReceptionist, RolePatient},
		OpListDoctorAppts:  {RoleAdmin, RoleDoctor, RoleReceptionist},
		OpListPatientAppts: {RoleAdmin, RoleDoctor, RoleReceptionist, RolePatient},
		OpCompleteAppt:     {RoleAdmin, RoleDoctor},

		OpReadInbox: append(append([]Role{}, staffRoles...), RolePatient),

		OpViewPatientRecord: append(append([]Role{}, staffRoles...), RolePatient),
		OpLookupPatient:     {RoleDoctor},
		OpUpdateOwnProfile:  {RolePatient},
		OpRecordTreatment:   {RoleDoctor},
		OpAddLabReport:      {RoleDoctor, RoleLabTechnician},
		OpUpdateBilling:     {RoleAdmin, RoleReceptionist},

		OpIssuePrescription: {RoleDoctor},
		OpFetchPrescription: {RoleDoctor, RolePatient},
	}
}

func (p Policy) Allows(op Operation, role Role) bool {
	for _, r := range p[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Require returns middleware that evaluates op against the caller's role.
// It must run after Authenticate.
func (p Policy) Require(op Operation) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := ClaimsFromContext(c.Request().Context())
			if claims == nil {
				return echo.NewHTTPError(http.StatusForbidden, "No token provided")
			}
			if !p.Allows(op, claims.Role) {
				return echo.NewHTTPError(http.StatusForbidden, "Access denied")
			}
			return next(c)
		}
	}
}
