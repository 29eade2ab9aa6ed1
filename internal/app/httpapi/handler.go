// Package httpapi exposes the parking registry and settlement REST API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ParkFee-Network/parking_layer/internal/app/domain/parking"
	"github.com/ParkFee-Network/parking_layer/internal/app/services/sessions"
	"github.com/ParkFee-Network/parking_layer/internal/app/services/settlement"
	"github.com/ParkFee-Network/parking_layer/internal/app/services/users"
	"github.com/ParkFee-Network/parking_layer/internal/app/storage"
)

// ChainProbe reports whether the settlement node is reachable.
type ChainProbe interface {
	GetBlockCount(ctx context.Context) (uint64, error)
}

// Services bundles the dependencies the handler dispatches to. Chain is nil
// when no settlement layer is configured.
type Services struct {
	Users      *users.Service
	Sessions   *sessions.Service
	Settlement *settlement.Service
	Chain      ChainProbe
}

type handler struct {
	svc Services
}

// NewHandler returns a mux exposing the REST API.
func NewHandler(svc Services) http.Handler {
	h := &handler{svc: svc}
	mux := http.NewServeMux()
	mux.HandleFunc("/users/", h.registerUser)
	mux.HandleFunc("/parking/entry/", h.parkingEntry)
	mux.HandleFunc("/parking/exit/", h.parkingExit)
	mux.HandleFunc("/parking/history/", h.parkingHistory)
	mux.HandleFunc("/parking/register/", h.settlementRegister)
	mux.HandleFunc("/parking/set-hours/", h.settlementSetHours)
	mux.HandleFunc("/parking/pay-fee/", h.settlementPayFee)
	mux.HandleFunc("/parking/deposit/", h.settlementDeposit)
	mux.HandleFunc("/parking/info/", h.settlementInfo)
	mux.HandleFunc("/healthz", h.health)
	return mux
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if h.svc.Chain != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if _, err := h.svc.Chain.GetBlockCount(ctx); err != nil {
			resp["chain"] = "unreachable"
		} else {
			resp["chain"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Registry endpoints -----------------------------------------------------

func (h *handler) registerUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Name          string `json:"name"`
		VehicleNumber string `json:"vehicle_number"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.svc.Users.Register(r.Context(), payload.Name, payload.VehicleNumber)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (h *handler) parkingEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	vehicle, err := vehicleNumber(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := h.svc.Sessions.RecordEntry(r.Context(), vehicle)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) parkingExit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	vehicle, err := vehicleNumber(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	summary, err := h.svc.Sessions.RecordExit(r.Context(), vehicle)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handler) parkingHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	vehicle := strings.TrimSpace(r.URL.Query().Get("vehicle_number"))
	if vehicle == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("vehicle_number is required"))
		return
	}

	recs, err := h.svc.Sessions.History(r.Context(), vehicle)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	if recs == nil {
		// Keep the response an array even when the vehicle has no sessions.
		recs = []parking.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// --- Settlement endpoints ---------------------------------------------------

func (h *handler) settlementRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		VehicleNumber string `json:"vehicle_number"`
		UserName      string `json:"user_name"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	receipt, err := h.svc.Settlement.RegisterVehicle(r.Context(), payload.VehicleNumber, payload.UserName)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeReceipt(w, receipt.TxHash)
}

func (h *handler) settlementSetHours(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		VehicleNumber string `json:"vehicle_number"`
		ParkingHours  int64  `json:"parking_hours"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	receipt, err := h.svc.Settlement.SetParkingHours(r.Context(), payload.VehicleNumber, payload.ParkingHours)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeReceipt(w, receipt.TxHash)
}

func (h *handler) settlementPayFee(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		VehicleNumber string `json:"vehicle_number"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	receipt, err := h.svc.Settlement.PayFee(r.Context(), payload.VehicleNumber)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeReceipt(w, receipt.TxHash)
}

func (h *handler) settlementDeposit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Amount <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("amount must be positive"))
		return
	}

	receipt, err := h.svc.Settlement.DepositBalance(r.Context(), payload.Amount)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeReceipt(w, receipt.TxHash)
}

func (h *handler) settlementInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	address := strings.Trim(strings.TrimPrefix(r.URL.Path, "/parking/info"), "/")
	if address == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("user address is required"))
		return
	}

	infos, err := h.svc.Settlement.GetVehicleInfo(r.Context(), address)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"vehicles": infos,
	})
}

// --- Helpers ----------------------------------------------------------------

// vehicleNumber reads the plate from the JSON body, falling back to the query
// parameter form older clients use.
func vehicleNumber(r *http.Request) (string, error) {
	var payload struct {
		VehicleNumber string `json:"vehicle_number"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if payload.VehicleNumber != "" {
		return payload.VehicleNumber, nil
	}
	if v := r.URL.Query().Get("vehicle_number"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("vehicle_number is required")
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, users.ErrNotRegistered):
		return http.StatusNotFound
	case errors.Is(err, users.ErrDuplicateVehicle),
		errors.Is(err, users.ErrInvalidInput),
		errors.Is(err, sessions.ErrSessionActive),
		errors.Is(err, sessions.ErrNoActiveSession),
		errors.Is(err, storage.ErrDuplicateVehicle),
		errors.Is(err, storage.ErrOpenRecordExists):
		return http.StatusBadRequest
	case errors.Is(err, settlement.ErrNotConfigured):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeReceipt(w http.ResponseWriter, txHash string) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":          "success",
		"transactionHash": txHash,
	})
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
