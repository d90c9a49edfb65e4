package handlers

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/Samudera-Biru-Indonesia/Project2-SMT/auth"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/models"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/storage"
)

// maxUploadBytes caps an upload-photos request body. Photos arrive already
// compressed client-side; anything bigger is a broken client.
const maxUploadBytes = 20 << 20

// PhotoHandler issues upload bearer tokens and archives trip photos.
type PhotoHandler struct {
	jwtManager *auth.JWTManager
	uploader   storage.Uploader
}

func NewPhotoHandler(jwtManager *auth.JWTManager, uploader storage.Uploader) *PhotoHandler {
	return &PhotoHandler{
		jwtManager: jwtManager,
		uploader:   uploader,
	}
}

// GetJWT mints a bearer token for the given session identity. The proxy does
// not re-verify the identity against the ERP; the login endpoint already did.
func (h *PhotoHandler) GetJWT(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeHandlerError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeHandlerError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, err := h.jwtManager.GenerateToken(req.Username, req.EmpCode, req.Site)
	if err != nil {
		log.Printf("❌ Failed to generate token for %s: %v", req.EmpCode, err)
		writeHandlerError(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.TokenResponse{Token: token})
}

// UploadPhotos stores the odometer/cargo photos for a trip. Requires a valid
// bearer token (enforced by middleware).
func (h *PhotoHandler) UploadPhotos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeHandlerError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.uploader == nil {
		writeHandlerError(w, "Photo storage is not configured", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var req models.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeHandlerError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.TripNum == "" {
		writeHandlerError(w, "tripNum is required", http.StatusBadRequest)
		return
	}

	var fileIDs []string
	photos := []struct {
		payload string
		suffix  string
	}{
		{req.OdometerPhoto, "_odometer.jpg"},
		{req.CargoPhoto, "_cargo.jpg"},
	}

	for _, p := range photos {
		if p.payload == "" {
			continue
		}
		data, err := decodeBase64Image(p.payload)
		if err != nil {
			writeHandlerError(w, "Failed to decode photo: "+err.Error(), http.StatusBadRequest)
			return
		}
		filename := req.TripNum + p.suffix
		id, err := h.uploader.Upload(r.Context(), filename, data)
		if err != nil {
			log.Printf("❌ Failed to upload %s: %v", filename, err)
			writeHandlerError(w, "Failed to store photo", http.StatusInternalServerError)
			return
		}
		fileIDs = append(fileIDs, id)
		log.Printf("📷 Uploaded %s (id %s)", filename, id)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.UploadResponse{
		Success: true,
		FileIDs: fileIDs,
	})
}

// decodeBase64Image strips an optional data-URL prefix and decodes the rest.
func decodeBase64Image(data string) ([]byte, error) {
	if idx := strings.Index(data, ","); idx != -1 {
		data = data[idx+1:]
	}
	return base64.StdEncoding.DecodeString(data)
}
