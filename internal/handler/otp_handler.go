package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"admin-auth/internal/audit"
	"admin-auth/internal/service"
)

const maxBodyBytes = 4 << 10

type OTPIssuer interface {
	Issue(ctx context.Context, req service.IssueRequest) (*service.IssueResult, error)
}

type OTPVerifier interface {
	Verify(ctx context.Context, req service.VerifyRequest) (*service.VerifyResult, error)
}

// IssueHandler serves POST /auth/otp.
type IssueHandler struct {
	issuer OTPIssuer
}

func NewIssueHandler(issuer OTPIssuer) *IssueHandler {
	return &IssueHandler{issuer: issuer}
}

func (h *IssueHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/otp", h.Issue)
}

func (h *IssueHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req service.IssueRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.issuer.Issue(requestContext(r), req)
	if err != nil {
		respondWithServiceError(w, err, "a valid email is required")
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

// VerifyHandler serves POST /auth/otp/verify.
type VerifyHandler struct {
	verifier OTPVerifier
}

func NewVerifyHandler(verifier OTPVerifier) *VerifyHandler {
	return &VerifyHandler{verifier: verifier}
}

func (h *VerifyHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/otp/verify", h.Verify)
}

func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req service.VerifyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.verifier.Verify(requestContext(r), req)
	if err != nil {
		respondWithServiceError(w, err, "email and a 6 digit otp are required")
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, msgBadBody)
		return false
	}
	return true
}

func requestContext(r *http.Request) context.Context {
	return audit.WithRequest(r.Context(), middleware.GetReqID(r.Context()), r.RemoteAddr)
}
