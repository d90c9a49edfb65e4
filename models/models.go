// models.go
// Wire-level data structures shared by the proxy server and the client SDK.
// Field names and JSON tags follow the Epicor SMTTruckCheckApp function library
// contract; renaming any of them breaks the upstream integration.

package models

import (
	"time"
)

// TripType is the gate movement direction.
type TripType string

const (
	TripIn  TripType = "IN"  // inbound (return) movement
	TripOut TripType = "OUT" // outbound (loaded) movement, requires checklist
)

// LoginRequest is the payload for AuthenticateLogon. The ERP validates the
// employee/site pair against the submitted coordinates.
type LoginRequest struct {
	LogonSite    string  `json:"logonSite"`
	LogonEMP     string  `json:"logonEMP"`
	CurLatitude  float64 `json:"curLatitude"`
	CurLongitude float64 `json:"curLongitude"`
	Env          string  `json:"env,omitempty"`
}

// UserLocation is a single geolocation fix with accuracy metadata.
type UserLocation struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"` // meters, 0 when unknown
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// TripData is the staging-table insert payload (InsertStagingTable).
// chk1..chk5 carry the outbound checklist flags; inbound trips send all false.
type TripData struct {
	Odometer float64 `json:"odometer"`
	Type     string  `json:"type"`
	Chk1     bool    `json:"chk1"`
	Chk2     bool    `json:"chk2"`
	Chk3     bool    `json:"chk3"`
	Chk4     bool    `json:"chk4"`
	Chk5     bool    `json:"chk5"`
	TripNum  string  `json:"tripNum"`
	Note     string  `json:"note"`
	Env      string  `json:"env,omitempty"`
}

// TripInfo is the master data the ERP returns for a resolved SPK (GetTripData).
type TripInfo struct {
	Driver     string `json:"driver"`
	CoDriver   string `json:"codriver"`
	TruckPlate string `json:"truckPlate"`
	RouteID    string `json:"routeID,omitempty"`
	Plant      string `json:"plant"`
	ETADate    string `json:"ETADate,omitempty"`
	TruckDesc  string `json:"truckDesc,omitempty"`
}

// Plant is one site from GetListPlant. Coordinates are optional; sites
// without them are skipped by nearest-plant selection.
type Plant struct {
	Plant string  `json:"Plant"`
	Name  string  `json:"Name"`
	Lat   float64 `json:"Lat,omitempty"`
	Long  float64 `json:"Long,omitempty"`
}

// TripTotal is the response of getTotalFromTripNumber: the system-of-record
// quantity and direction for a trip.
type TripTotal struct {
	Total float64 `json:"total"`
	Type  string  `json:"type"`
}

// TruckCheck is one row of getOutTruckCheck: the last recorded odometer for a
// trip, used as the regression reference for inbound readings.
type TruckCheck struct {
	Company  string  `json:"Company"`
	TripNum  string  `json:"TripNum"`
	Odometer float64 `json:"Odometer"`
}

// UploadRequest carries compressed photos for a trip, base64 data-URL encoded.
type UploadRequest struct {
	TripNum       string `json:"tripNum"`
	OdometerPhoto string `json:"odometerPhoto,omitempty"`
	CargoPhoto    string `json:"cargoPhoto,omitempty"`
	Condition     string `json:"condition,omitempty"`
}

// UploadResponse is returned by the upload-photos endpoint.
type UploadResponse struct {
	Success bool     `json:"success"`
	FileIDs []string `json:"fileIds"`
}

// TokenRequest asks the proxy for an upload bearer token, keyed by the
// authenticated session identity.
type TokenRequest struct {
	Username string `json:"username"`
	EmpCode  string `json:"empCode"`
	Site     string `json:"site"`
}

// TokenResponse carries the issued bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// TripRecord is one entry of the device-local trip history (audit trail).
// Appended after every confirmed submission; never sent upstream.
type TripRecord struct {
	RecordID        string    `json:"record_id"`
	TruckBarcode    string    `json:"truckBarcode"`
	TripType        string    `json:"tripType"`
	TripNumber      string    `json:"tripNumber"`
	OdometerReading string    `json:"odometerReading"`
	CargoQuantity   string    `json:"cargoQuantity,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	ChecklistData   string    `json:"checklistData,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}
