package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UnknownLocationName is sent when the scanned payload carried no name.
const UnknownLocationName = "Unknown Location"

// AttendanceRecord is the body posted to the attendance endpoint.
type AttendanceRecord struct {
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName"`
	Email        string    `json:"email"`
	Timestamp    time.Time `json:"timestamp"`
	Location     Location  `json:"location"`
	QRLocation   Location  `json:"qrLocation"`
	LocationName string    `json:"locationName"`
}

// NewAttendanceRecord composes a record from the identity, the verifier's
// live location and the scanned payload.
func NewAttendanceRecord(id Identity, live Location, scanned QRPayload, at time.Time) AttendanceRecord {
	name := scanned.LocationName
	if name == "" {
		name = UnknownLocationName
	}
	return AttendanceRecord{
		UserID:       id.EmployeeID,
		UserName:     id.DisplayName(),
		Email:        id.Email,
		Timestamp:    at.UTC(),
		Location:     live,
		QRLocation:   scanned.Location(),
		LocationName: name,
	}
}

// AttendanceResponse is the acknowledgement returned by the attendance endpoint.
type AttendanceResponse struct {
	Success bool   `json:"success" bson:"success"`
	Message string `json:"message" bson:"message"`
}

// Attempt is a journal entry for one finished verification cycle.
type Attempt struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	CycleID    string              `bson:"cycle_id" json:"cycle_id"`
	State      string              `bson:"state" json:"state"`
	ErrorKind  string              `bson:"error_kind,omitempty" json:"error_kind,omitempty"`
	EmployeeID string              `bson:"employee_id,omitempty" json:"employee_id,omitempty"`
	Live       *Location           `bson:"live,omitempty" json:"live,omitempty"`
	Scanned    *QRPayload          `bson:"scanned,omitempty" json:"scanned,omitempty"`
	Result     *MatchResult        `bson:"result,omitempty" json:"result,omitempty"`
	Response   *AttendanceResponse `bson:"response,omitempty" json:"response,omitempty"`
	CreatedAt  time.Time           `bson:"created_at" json:"created_at"`
}
