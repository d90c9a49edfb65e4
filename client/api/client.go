// Package api is the client side of the proxy HTTP surface. Every business
// call attaches the active environment name; credentials are injected by the
// proxy, never by this package. Calls are fire-once with no retry or backoff;
// failure surfaces synchronously to the calling workflow step.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Samudera-Biru-Indonesia/Project2-SMT/auth"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/client/environment"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/models"
)

// ErrTokenExpired is returned by UploadPhotos when the local pre-flight check
// finds the bearer token already past its embedded expiry. No request is made.
var ErrTokenExpired = errors.New("upload token has expired")

// StatusError is a non-2xx response or a transport failure. Status 0 means
// the request never produced an HTTP response (connectivity), mirroring the
// browser convention the error taxonomy was written against.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	if e.Status == 0 {
		return "request failed: no response from server"
	}
	return fmt.Sprintf("request failed: HTTP %d", e.Status)
}

// IsTransport reports whether err is a connectivity failure (status 0).
func IsTransport(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == 0
}

// StatusOf returns the HTTP status carried by err, or -1 when err is not a
// StatusError.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return -1
}

// Client issues calls against the proxy for the currently selected env.
type Client struct {
	baseURL    string
	env        *environment.Selector
	httpClient *http.Client
}

// NewClient creates a proxy client. httpClient may be nil for defaults.
func NewClient(baseURL string, env *environment.Selector, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, env: env, httpClient: httpClient}
}

// post sends payload to the named endpoint with env injected, decodes a 2xx
// body into out (when non-nil), and wraps everything else in a StatusError.
func (c *Client) post(ctx context.Context, endpoint string, payload map[string]interface{}, out interface{}) error {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["env"] = c.env.Current().Name

	return c.postRaw(ctx, endpoint, payload, "", out)
}

func (c *Client) postRaw(ctx context.Context, endpoint string, payload interface{}, bearer string, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &StatusError{Status: 0}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &StatusError{Status: 0}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, Body: respBody}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Login submits credentials + coordinates to AuthenticateLogon. The raw body
// is returned for success classification by the session manager: the ERP's
// success shapes vary and are interpreted in exactly one place.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (map[string]interface{}, error) {
	payload := map[string]interface{}{
		"logonSite":    req.LogonSite,
		"logonEMP":     req.LogonEMP,
		"curLatitude":  req.CurLatitude,
		"curLongitude": req.CurLongitude,
	}
	raw := map[string]interface{}{}
	if err := c.post(ctx, "login", payload, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// GetTripData resolves a scanned SPK to its trip master data.
func (c *Client) GetTripData(ctx context.Context, tripNum string) (models.TripInfo, error) {
	var info models.TripInfo
	err := c.post(ctx, "get-trip-data", map[string]interface{}{"tripNum": tripNum}, &info)
	return info, err
}

// GetAllTripData lists open SPK numbers for a plate number.
// Response shape: { TripData: { Result: [ { tripNumber } ... ] } }.
func (c *Client) GetAllTripData(ctx context.Context, plate string) ([]string, error) {
	var resp struct {
		TripData struct {
			Result []struct {
				TripNumber string `json:"tripNumber"`
			} `json:"Result"`
		} `json:"TripData"`
	}
	if err := c.post(ctx, "get-all-trip-data", map[string]interface{}{"nopol": plate}, &resp); err != nil {
		return nil, err
	}

	var trips []string
	for _, t := range resp.TripData.Result {
		if t.TripNumber != "" {
			trips = append(trips, t.TripNumber)
		}
	}
	return trips, nil
}

// SendTripData inserts the trip record into the ERP staging table. The raw
// body is returned because the ERP can report business rejections inside a
// 2xx response.
func (c *Client) SendTripData(ctx context.Context, data models.TripData) (map[string]interface{}, error) {
	payload := map[string]interface{}{
		"odometer": data.Odometer,
		"type":     data.Type,
		"chk1":     data.Chk1,
		"chk2":     data.Chk2,
		"chk3":     data.Chk3,
		"chk4":     data.Chk4,
		"chk5":     data.Chk5,
		"tripNum":  data.TripNum,
		"note":     data.Note,
	}
	raw := map[string]interface{}{}
	if err := c.post(ctx, "send-trip-data", payload, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// GetPlantList fetches the site list. The upstream has shipped two shapes over
// time ({Result:{Plant:[...]}} and bare arrays); both are accepted.
func (c *Client) GetPlantList(ctx context.Context) ([]models.Plant, error) {
	var resp struct {
		Result struct {
			Plant []models.Plant `json:"Plant"`
		} `json:"Result"`
		Plants []models.Plant `json:"plants"`
		Data   []models.Plant `json:"data"`
	}
	if err := c.post(ctx, "get-plant-list", nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Result.Plant) > 0 {
		return resp.Result.Plant, nil
	}
	if len(resp.Plants) > 0 {
		return resp.Plants, nil
	}
	return resp.Data, nil
}

// ProcessTripData asks the ERP to pick up a staged trip (ProcessTripTimeEntry).
// Best-effort from the workflow's point of view: the staging insert already
// made the data durable.
func (c *Client) ProcessTripData(ctx context.Context, tripNum string) (map[string]interface{}, error) {
	raw := map[string]interface{}{}
	if err := c.post(ctx, "process-trip-data", map[string]interface{}{"tripNum": tripNum}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// GetTotalFromTripNumber returns the system-of-record total for a trip.
func (c *Client) GetTotalFromTripNumber(ctx context.Context, tripNum string) (models.TripTotal, error) {
	var total models.TripTotal
	err := c.post(ctx, "get-total-from-trip-number", map[string]interface{}{"tripNum": tripNum}, &total)
	return total, err
}

// GetOutTruckCheck returns the recorded outbound odometer for tripNum, used
// as the regression reference for the matching inbound reading. ok is false
// when the ERP has no row for the trip.
func (c *Client) GetOutTruckCheck(ctx context.Context, tripNum string) (float64, bool, error) {
	var resp struct {
		TruckCheckData struct {
			Result []models.TruckCheck `json:"Result"`
		} `json:"TruckCheckData"`
	}
	if err := c.post(ctx, "get-out-truck-check", map[string]interface{}{"tripNum": tripNum}, &resp); err != nil {
		return 0, false, err
	}
	for _, row := range resp.TruckCheckData.Result {
		if row.TripNum == tripNum {
			return row.Odometer, true, nil
		}
	}
	return 0, false, nil
}

// GetJWT requests an upload bearer token for the session identity.
func (c *Client) GetJWT(ctx context.Context, req models.TokenRequest) (string, error) {
	var resp models.TokenResponse
	if err := c.postRaw(ctx, "get-jwt", req, "", &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// UploadPhotos sends compressed trip photos, authenticated by bearer token.
// The token's embedded expiry is checked locally first; an expired token
// fails fast with ErrTokenExpired and no request is made.
func (c *Client) UploadPhotos(ctx context.Context, token string, req models.UploadRequest) (models.UploadResponse, error) {
	var resp models.UploadResponse

	expiry, err := auth.TokenExpiresAt(token)
	if err != nil {
		return resp, fmt.Errorf("invalid upload token: %w", err)
	}
	if time.Now().After(expiry) {
		return resp, ErrTokenExpired
	}

	if err := c.postRaw(ctx, "upload-photos", req, token, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}
