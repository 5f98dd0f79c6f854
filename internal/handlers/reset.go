package handlers

import "net/http"

type sendResetRequest struct {
	Phone string `json:"phone" validate:"required,max=20"`
}

type verifyCodeRequest struct {
	Phone string `json:"phone" validate:"required,max=20"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// SendResetSMSHandler всегда отвечает одинаково, чтобы не раскрывать зарегистрированные номера
func (h *Handler) SendResetSMSHandler(w http.ResponseWriter, r *http.Request) {
	var req sendResetRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.services.Reset.SendCode(r.Context(), req.Phone); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "If the phone is registered, a reset code has been sent"})
}

func (h *Handler) VerifySMSCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	token, err := h.services.Reset.VerifyCode(r.Context(), req.Phone, req.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"resetToken": token})
}

func (h *Handler) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.services.Reset.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset"})
}
