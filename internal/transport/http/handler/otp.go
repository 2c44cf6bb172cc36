package handler

import (
	"net/http"

	"github.com/civic-alerts/internal/application/otp"
	"github.com/civic-alerts/internal/domain"
)

// OTPHandler handles phone and e-mail verification codes.
type OTPHandler struct {
	svc otp.Service
}

func NewOTPHandler(svc otp.Service) *OTPHandler { return &OTPHandler{svc: svc} }

func (h *OTPHandler) RequestPhone(w http.ResponseWriter, r *http.Request) {
	var req domain.PhoneCodeRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if err := h.svc.RequestPhoneCode(r.Context(), req.Phone); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, OTPEnvelope{OK: true, Message: "verification code sent"})
}

func (h *OTPHandler) VerifyPhone(w http.ResponseWriter, r *http.Request) {
	var req domain.PhoneVerifyRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if err := h.svc.VerifyPhone(r.Context(), req.Phone, req.Code); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, OTPEnvelope{OK: true, Message: "phone verified"})
}

func (h *OTPHandler) RequestEmail(w http.ResponseWriter, r *http.Request) {
	var req domain.EmailCodeRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if err := h.svc.RequestEmailCode(r.Context(), req.Email, req.Name); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, OTPEnvelope{OK: true, Message: "verification code sent"})
}

func (h *OTPHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req domain.EmailVerifyRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if err := h.svc.VerifyEmail(r.Context(), req.Email, req.Code); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, OTPEnvelope{OK: true, Message: "email verified"})
}
