package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openfest/registrar/internal/model"
	"github.com/openfest/registrar/internal/service"
	"github.com/openfest/registrar/internal/storage"
)

// maxProofSize bounds payment proof uploads.
const maxProofSize = 8 << 20 // 8 MB

// RegistrationHandler holds the HTTP handlers for the registration
// lifecycle.
type RegistrationHandler struct {
	registrations *service.RegistrationService
	proofs        storage.ProofStore
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(registrations *service.RegistrationService, proofs storage.ProofStore) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations, proofs: proofs}
}

// Register handles POST /events/{id}/register
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	var req model.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.registrations.RegisterIndividual(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// RegisterMerch handles POST /events/{id}/merch
func (h *RegistrationHandler) RegisterMerch(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	var req model.MerchRegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.registrations.RegisterMerchandise(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// UploadProof handles POST /registrations/{id}/proof (multipart)
func (h *RegistrationHandler) UploadProof(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	regID := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, maxProofSize)
	file, header, err := r.FormFile("proof")
	if err != nil {
		writeError(w, http.StatusBadRequest, "proof file is required")
		return
	}
	defer file.Close()

	// Refuse before storing so a rejected upload leaves no orphan object.
	if err := h.registrations.CheckProofUpload(r.Context(), actor, regID); err != nil {
		writeDomainError(w, err)
		return
	}

	ref, err := h.proofs.Save(r.Context(), regID, header.Filename, file)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	reg, err := h.registrations.UploadPaymentProof(r.Context(), actor, regID, ref)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// ApprovePayment handles POST /registrations/{id}/approve
func (h *RegistrationHandler) ApprovePayment(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	reg, err := h.registrations.ApprovePayment(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// RejectPayment handles POST /registrations/{id}/reject
func (h *RegistrationHandler) RejectPayment(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	var req model.RejectPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.registrations.RejectPayment(r.Context(), actor, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// CancelRegistration handles POST /registrations/{id}/cancel
func (h *RegistrationHandler) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	reg, err := h.registrations.Cancel(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// CheckIn handles POST /events/{id}/checkin
func (h *RegistrationHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	var req model.CheckInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, already, err := h.registrations.CheckIn(r.Context(), actor, chi.URLParam(r, "id"), req.QRPayload)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"registration":       reg,
		"already_checked_in": already,
	})
}

// ListMine handles GET /registrations/mine
func (h *RegistrationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	regs, err := h.registrations.ListMine(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}
