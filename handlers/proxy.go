package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

// ProxyHandler exposes the pass-through endpoints consumed by the mobile
// client. Each endpoint accepts a JSON body carrying the business payload plus
// an `env` selector, strips the selector, forwards the rest to the matching
// ERP function, and relays the upstream status and body verbatim. No retry,
// no caching: failure surfaces synchronously to the calling workflow step.
type ProxyHandler struct {
	epicor *EpicorClient
}

func NewProxyHandler(epicor *EpicorClient) *ProxyHandler {
	return &ProxyHandler{epicor: epicor}
}

// Endpoint name -> ERP function name. The client-facing names are part of the
// local storage/API contract and must not change.
var proxyFunctions = map[string]string{
	"login":                      "AuthenticateLogon",
	"get-trip-data":              "GetTripData",
	"get-all-trip-data":          "GetAllTripData",
	"send-trip-data":             "InsertStagingTable",
	"get-plant-list":             "GetListPlant",
	"process-trip-data":          "ProcessTripTimeEntry",
	"get-total-from-trip-number": "getTotalFromTripNumber",
	"get-out-truck-check":        "getOutTruckCheck",
}

// Endpoints returns the client-facing endpoint names for route registration.
func (h *ProxyHandler) Endpoints() []string {
	names := make([]string, 0, len(proxyFunctions))
	for name := range proxyFunctions {
		names = append(names, name)
	}
	return names
}

// Handle returns the handler for one named pass-through endpoint.
func (h *ProxyHandler) Handle(endpoint string) http.HandlerFunc {
	function := proxyFunctions[endpoint]
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeHandlerError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		payload := map[string]interface{}{}
		if r.Body != nil {
			// An empty or absent body is fine: get-plant-list sends {}.
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && err.Error() != "EOF" {
				writeHandlerError(w, "Invalid request body", http.StatusBadRequest)
				return
			}
		}

		env := "live"
		if v, ok := payload["env"].(string); ok && v != "" {
			env = v
		}
		delete(payload, "env")

		status, body, err := h.epicor.Forward(r.Context(), env, function, payload)
		if err != nil {
			log.Printf("❌ %s forward failed (env=%s): %v", endpoint, env, err)
			writeHandlerError(w, "Upstream request failed", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}
}

func writeHandlerError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
