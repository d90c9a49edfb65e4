// Package workflow drives the gate check sequence: resolve a truck, pick the
// trip, walk the outbound checklist, capture the odometer and submit the
// result to the ERP staging table.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Samudera-Biru-Indonesia/Project2-SMT/client/api"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/client/barcode"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/client/photo"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/client/session"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/client/store"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/models"
)

// Step is the current position in the gate check sequence.
type Step int

const (
	StepScanBarcode Step = iota
	StepTripSelection
	StepChecklist
	StepOdometer
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepScanBarcode:
		return "scan-barcode"
	case StepTripSelection:
		return "trip-selection"
	case StepChecklist:
		return "checklist"
	case StepOdometer:
		return "odometer"
	case StepComplete:
		return "complete"
	}
	return "unknown"
}

// Validation and sequencing errors surfaced to the screen layer.
var (
	ErrNotAuthenticated    = errors.New("sesi Anda telah berakhir, silakan login kembali")
	ErrInvalidBarcode      = errors.New("barcode truk tidak valid")
	ErrPlateTooShort       = errors.New("nomor polisi minimal 4 karakter")
	ErrNoTripsFound        = errors.New("tidak ada trip aktif untuk truk ini")
	ErrWrongStep           = errors.New("langkah tidak sesuai urutan")
	ErrChecklistIncomplete = errors.New("semua item checklist wajib dicentang")
	ErrChecklistSubmitted  = errors.New("checklist sudah dikirim untuk trip ini")
	ErrOdometerInvalid     = errors.New("angka odometer tidak valid")
	ErrCargoInvalid        = errors.New("jumlah muatan tidak valid")
	ErrPhotosRequired      = errors.New("foto odometer dan muatan wajib untuk site ini")
)

// OdometerRegressionError reports an inbound reading below the recorded
// outbound reference. The first occurrence is a warning; resubmitting the
// same value overrides it.
type OdometerRegressionError struct {
	Reading   float64
	Reference float64
}

func (e *OdometerRegressionError) Error() string {
	return fmt.Sprintf("odometer %.1f lebih kecil dari pembacaan keluar %.1f", e.Reading, e.Reference)
}

// ChecklistItem is one outbound checklist entry. IDs map to the chk1..chk5
// staging-table columns.
type ChecklistItem struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
	Checked  bool   `json:"checked"`
}

// DefaultChecklist returns the outbound departure checklist.
func DefaultChecklist() []ChecklistItem {
	return []ChecklistItem{
		{ID: "chk1", Label: "Surat Jalan", Required: true},
		{ID: "chk2", Label: "APD", Required: true},
		{ID: "chk3", Label: "Kendaraan Layak Jalan", Required: true},
	}
}

// State is the restorable trip-in-progress snapshot.
type State struct {
	Step       Step
	Barcode    string
	TripType   models.TripType
	TripNumber string
	TripDriver string
	TripInfo   *models.TripInfo
	Checklist  []ChecklistItem
}

// OdometerInput is the final capture screen's submission.
type OdometerInput struct {
	Odometer      string
	Cargo         string
	Notes         string
	OdometerPhoto *photo.Photo
	CargoPhoto    *photo.Photo
}

// Result summarizes a confirmed submission.
type Result struct {
	RecordID   string
	TripNumber string
	TripType   models.TripType
}

// Controller owns the trip-in-progress state. Persist-as-you-go: every
// transition writes through to the local store so an interrupted trip resumes
// where it stopped.
type Controller struct {
	api  *api.Client
	st   *store.Store
	sess *session.Manager

	// sites where odometer/cargo photos are mandatory
	photoSites map[string]bool

	state State

	checklistDone   bool
	regressionShown bool

	now func() time.Time
}

// NewController restores any persisted trip state. A snapshot missing its
// barcode or trip number is treated as garbage and the sequence restarts.
func NewController(apiClient *api.Client, st *store.Store, sess *session.Manager, photoSites []string) *Controller {
	c := &Controller{
		api:        apiClient,
		st:         st,
		sess:       sess,
		photoSites: make(map[string]bool, len(photoSites)),
		now:        time.Now,
	}
	for _, s := range photoSites {
		c.photoSites[strings.ToUpper(strings.TrimSpace(s))] = true
	}
	c.restore()
	return c
}

func (c *Controller) restore() {
	c.state = State{Step: StepScanBarcode}

	code := c.st.Get(store.KeyTruckBarcode)
	tripNum := c.st.Get(store.KeyTripNumber)
	if code == "" || tripNum == "" {
		c.clearTripKeys()
		return
	}

	c.state.Barcode = code
	c.state.TripNumber = tripNum
	c.state.TripDriver = c.st.Get(store.KeyTripDriver)
	c.state.TripType = models.TripType(c.st.Get(store.KeyTripType))

	if raw := c.st.Get(store.KeyCurrentTrip); raw != "" {
		var info models.TripInfo
		if json.Unmarshal([]byte(raw), &info) == nil {
			c.state.TripInfo = &info
		}
	}

	if raw := c.st.Get(store.KeyChecklist); raw != "" {
		var items []ChecklistItem
		if json.Unmarshal([]byte(raw), &items) == nil {
			c.state.Checklist = items
			c.checklistDone = true
		}
	}

	switch c.state.TripType {
	case models.TripOut:
		if c.checklistDone {
			c.state.Step = StepOdometer
		} else {
			c.state.Step = StepChecklist
		}
	case models.TripIn:
		c.state.Step = StepOdometer
	default:
		c.state.Step = StepTripSelection
	}
	log.Printf("Trip state restored: %s at step %s", tripNum, c.state.Step)
}

// State returns a copy of the current snapshot.
func (c *Controller) State() State {
	s := c.state
	if s.TripInfo != nil {
		info := *s.TripInfo
		s.TripInfo = &info
	}
	s.Checklist = append([]ChecklistItem(nil), s.Checklist...)
	return s
}

// ResolveBarcode accepts a stable scanner read and advances to trip
// selection. A canonical barcode is the SPK trip number itself, so the trip
// is resolved on the spot; legacy codes go through the plate lookup instead.
// Any trip already in progress is discarded first.
func (c *Controller) ResolveBarcode(ctx context.Context, code string) error {
	code = barcode.Normalize(code)
	if !barcode.Validate(code) {
		return ErrInvalidBarcode
	}

	c.clearTripKeys()
	c.state = State{Step: StepTripSelection, Barcode: code}
	_ = c.st.Set(store.KeyTruckBarcode, code)

	if !barcode.IsCanonical(code) {
		return nil
	}
	info, err := c.api.GetTripData(ctx, code)
	if err != nil {
		// The barcode stands; trip resolution falls back to manual entry.
		log.Printf("⚠️  Trip lookup failed for %s: %v", code, err)
		return nil
	}
	c.applyTrip(code, info)
	return nil
}

// LookupTripsByPlate finds the active trip numbers for a plate. A single hit
// is selected immediately; multiple hits go back to the caller for a choice.
func (c *Controller) LookupTripsByPlate(ctx context.Context, plate string) ([]string, error) {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	if len(plate) < 4 {
		return nil, ErrPlateTooShort
	}

	trips, err := c.api.GetAllTripData(ctx, plate)
	if err != nil {
		return nil, fmt.Errorf("looking up trips for %s: %w", plate, err)
	}
	if len(trips) == 0 {
		return nil, ErrNoTripsFound
	}
	if len(trips) == 1 {
		if err := c.SelectTrip(ctx, trips[0]); err != nil {
			return nil, err
		}
	}
	return trips, nil
}

// SelectTrip resolves a trip number to its master data and persists it.
func (c *Controller) SelectTrip(ctx context.Context, tripNum string) error {
	if c.state.Step != StepTripSelection {
		return ErrWrongStep
	}

	tripNum = strings.TrimSpace(tripNum)
	info, err := c.api.GetTripData(ctx, tripNum)
	if err != nil {
		return fmt.Errorf("resolving trip %s: %w", tripNum, err)
	}
	c.applyTrip(tripNum, info)
	return nil
}

func (c *Controller) applyTrip(tripNum string, info models.TripInfo) {
	c.state.TripNumber = tripNum
	c.state.TripDriver = info.Driver
	c.state.TripInfo = &info

	_ = c.st.Set(store.KeyTripNumber, tripNum)
	_ = c.st.Set(store.KeyTripDriver, info.Driver)
	if data, err := json.Marshal(info); err == nil {
		_ = c.st.Set(store.KeyCurrentTrip, string(data))
	}
}

// SelectTripType records the movement direction. Outbound trips go through
// the checklist first; inbound trips skip straight to the odometer.
func (c *Controller) SelectTripType(t models.TripType) error {
	if c.state.Step != StepTripSelection || c.state.TripNumber == "" {
		return ErrWrongStep
	}
	if t != models.TripIn && t != models.TripOut {
		return fmt.Errorf("unknown trip type %q", t)
	}

	c.state.TripType = t
	_ = c.st.Set(store.KeyTripType, string(t))

	if t == models.TripOut {
		c.state.Checklist = DefaultChecklist()
		c.state.Step = StepChecklist
	} else {
		c.state.Step = StepOdometer
	}
	return nil
}

// SubmitChecklist validates and stores the outbound checklist. A checklist
// already submitted for this trip is rejected rather than silently replaced.
func (c *Controller) SubmitChecklist(items []ChecklistItem) error {
	if c.state.Step != StepChecklist {
		return ErrWrongStep
	}
	if c.checklistDone {
		return ErrChecklistSubmitted
	}

	for _, item := range items {
		if item.Required && !item.Checked {
			return ErrChecklistIncomplete
		}
	}

	c.state.Checklist = append([]ChecklistItem(nil), items...)
	c.checklistDone = true
	if data, err := json.Marshal(items); err == nil {
		_ = c.st.Set(store.KeyChecklist, string(data))
	}
	c.persistPendingTrip()
	c.state.Step = StepOdometer
	return nil
}

// persistPendingTrip snapshots the staging payload as known so far, so a
// reload between the checklist and the odometer screen loses nothing.
func (c *Controller) persistPendingTrip() {
	pending := models.TripData{
		Type:    string(c.state.TripType),
		TripNum: c.state.TripNumber,
	}
	for _, item := range c.state.Checklist {
		switch item.ID {
		case "chk1":
			pending.Chk1 = item.Checked
		case "chk2":
			pending.Chk2 = item.Checked
		case "chk3":
			pending.Chk3 = item.Checked
		case "chk4":
			pending.Chk4 = item.Checked
		case "chk5":
			pending.Chk5 = item.Checked
		}
	}
	if data, err := json.Marshal(pending); err == nil {
		_ = c.st.Set(store.KeyTripData, string(data))
	}
}

// MarkOdometerEdited clears the one-shot regression override. Editing the
// reading after the warning means the next submit is checked again.
func (c *Controller) MarkOdometerEdited() {
	c.regressionShown = false
}

// SubmitOdometer validates the capture, runs the inbound regression check and
// submits the trip to the staging table. Nothing local is cleared until the
// ERP confirms; a failure leaves the whole state intact for a retry.
func (c *Controller) SubmitOdometer(ctx context.Context, in OdometerInput) (*Result, error) {
	if c.state.Step != StepOdometer {
		return nil, ErrWrongStep
	}
	if !c.sess.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	odometer, err := parseReading(in.Odometer)
	if err != nil {
		return nil, ErrOdometerInvalid
	}

	var cargo float64
	if strings.TrimSpace(in.Cargo) != "" {
		cargo, err = parseReading(in.Cargo)
		if err != nil {
			return nil, ErrCargoInvalid
		}
	}

	user := c.sess.CurrentUser()
	if c.photoSites[user.Site] && (in.OdometerPhoto == nil || in.CargoPhoto == nil) {
		return nil, ErrPhotosRequired
	}

	// Inbound readings are checked against the recorded outbound odometer.
	// The warning fires once; resubmitting the unchanged value overrides it.
	if c.state.TripType == models.TripIn && !c.regressionShown {
		reference, found, err := c.api.GetOutTruckCheck(ctx, c.state.TripNumber)
		if err != nil {
			log.Printf("⚠️  Out-truck check unavailable for %s: %v", c.state.TripNumber, err)
		} else if found && odometer < reference {
			c.regressionShown = true
			return nil, &OdometerRegressionError{Reading: odometer, Reference: reference}
		}
	}

	payload := models.TripData{
		Odometer: odometer,
		Type:     string(c.state.TripType),
		TripNum:  c.state.TripNumber,
		Note:     buildNote(in.Notes, cargo),
	}
	for _, item := range c.state.Checklist {
		switch item.ID {
		case "chk1":
			payload.Chk1 = item.Checked
		case "chk2":
			payload.Chk2 = item.Checked
		case "chk3":
			payload.Chk3 = item.Checked
		case "chk4":
			payload.Chk4 = item.Checked
		case "chk5":
			payload.Chk5 = item.Checked
		}
	}

	body, err := c.api.SendTripData(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("submitting trip %s: %w", c.state.TripNumber, err)
	}
	if msg, failed := rejectedBody(body); failed {
		return nil, fmt.Errorf("trip %s rejected: %s", c.state.TripNumber, msg)
	}

	record := c.appendTripRecord(in, odometer)

	// Post-submission steps are best-effort: the staging row is already in,
	// so their failure is logged, not surfaced as a submission failure.
	if c.state.TripType == models.TripOut {
		if _, err := c.api.ProcessTripData(ctx, c.state.TripNumber); err != nil {
			log.Printf("⚠️  Trip time entry processing failed for %s: %v", c.state.TripNumber, err)
		}
	}
	c.uploadPhotos(ctx, in)

	result := &Result{
		RecordID:   record.RecordID,
		TripNumber: c.state.TripNumber,
		TripType:   c.state.TripType,
	}

	c.clearTripKeys()
	c.state.Step = StepComplete
	log.Printf("✅ Trip %s (%s) submitted", result.TripNumber, result.TripType)
	return result, nil
}

// StartNewTrip discards the current trip and returns to scanning.
func (c *Controller) StartNewTrip() {
	c.clearTripKeys()
	c.state = State{Step: StepScanBarcode}
	c.checklistDone = false
	c.regressionShown = false
}

// TripHistory returns the device-local audit trail, newest last.
func (c *Controller) TripHistory() []models.TripRecord {
	raw := c.st.Get(store.KeyTrips)
	if raw == "" {
		return nil
	}
	var records []models.TripRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		log.Printf("⚠️  Trip history unreadable: %v", err)
		return nil
	}
	return records
}

func (c *Controller) appendTripRecord(in OdometerInput, odometer float64) models.TripRecord {
	record := models.TripRecord{
		RecordID:        uuid.NewString(),
		TruckBarcode:    c.state.Barcode,
		TripType:        string(c.state.TripType),
		TripNumber:      c.state.TripNumber,
		OdometerReading: strconv.FormatFloat(odometer, 'f', -1, 64),
		CargoQuantity:   strings.TrimSpace(in.Cargo),
		Notes:           strings.TrimSpace(in.Notes),
		Timestamp:       c.now(),
	}
	if len(c.state.Checklist) > 0 {
		if data, err := json.Marshal(c.state.Checklist); err == nil {
			record.ChecklistData = string(data)
		}
	}

	records := c.TripHistory()
	records = append(records, record)
	if data, err := json.Marshal(records); err == nil {
		_ = c.st.Set(store.KeyTrips, string(data))
	}
	return record
}

func (c *Controller) uploadPhotos(ctx context.Context, in OdometerInput) {
	if in.OdometerPhoto == nil && in.CargoPhoto == nil {
		return
	}

	token := c.sess.BearerToken()
	if token == "" {
		log.Println("⚠️  No upload token, skipping photo upload")
		return
	}

	req := models.UploadRequest{TripNum: c.state.TripNumber}
	if in.OdometerPhoto != nil {
		req.OdometerPhoto = in.OdometerPhoto.DataURL()
	}
	if in.CargoPhoto != nil {
		req.CargoPhoto = in.CargoPhoto.DataURL()
	}

	if _, err := c.api.UploadPhotos(ctx, token, req); err != nil {
		if errors.Is(err, api.ErrTokenExpired) {
			log.Printf("⚠️  Upload token expired, photos for %s not archived", c.state.TripNumber)
		} else {
			log.Printf("⚠️  Photo upload failed for %s: %v", c.state.TripNumber, err)
		}
	}
}

func (c *Controller) clearTripKeys() {
	for _, key := range []string{
		store.KeyTruckBarcode,
		store.KeyTripType,
		store.KeyTripNumber,
		store.KeyTripDriver,
		store.KeyCurrentTrip,
		store.KeyChecklist,
		store.KeyTripData,
	} {
		_ = c.st.Remove(key)
	}
	c.checklistDone = false
	c.regressionShown = false
}

// parseReading parses a non-negative decimal, accepting a comma separator.
func parseReading(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, errors.New("empty")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errors.New("negative")
	}
	return v, nil
}

func buildNote(notes string, cargo float64) string {
	notes = strings.TrimSpace(notes)
	if cargo > 0 {
		qty := "Qty: " + strconv.FormatFloat(cargo, 'f', -1, 64)
		if notes == "" {
			return qty
		}
		return qty + "; " + notes
	}
	return notes
}

// rejectedBody detects an error reported inside a 2xx response body. The ERP
// sometimes answers 200 with a status/message pair instead of an HTTP error.
func rejectedBody(body map[string]interface{}) (string, bool) {
	for _, key := range []string{"status", "Status"} {
		if v, ok := body[key].(string); ok && strings.EqualFold(v, "error") {
			for _, mk := range []string{"message", "Message"} {
				if msg, ok := body[mk].(string); ok && msg != "" {
					return msg, true
				}
			}
			return "unknown error", true
		}
	}
	return "", false
}
