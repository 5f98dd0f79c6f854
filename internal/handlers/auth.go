package handlers

import (
	"net/http"

	"campusmarket/internal/auth"
	"campusmarket/models"
)

type registerRequest struct {
	Name       string   `json:"name" validate:"required,max=100"`
	Email      string   `json:"email" validate:"required,email"`
	Password   string   `json:"password" validate:"required,min=8"`
	Phone      string   `json:"phone" validate:"required,max=20"`
	Role       string   `json:"role" validate:"required,oneof=client service_provider admin"`
	Address    string   `json:"address"`
	Latitude   *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude  *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	CollegeID  *int     `json:"collegeId"`
	ServiceIDs []int    `json:"serviceIds"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterHandler создает аккаунт клиента или исполнителя
func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	in := auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Role:     models.Role(req.Role),
	}
	if in.Role == models.RoleServiceProvider {
		in.Provider = &auth.ProviderInput{
			Address:    req.Address,
			Latitude:   req.Latitude,
			Longitude:  req.Longitude,
			CollegeID:  req.CollegeID,
			ServiceIDs: req.ServiceIDs,
		}
	}

	session, err := h.services.Accounts.Register(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	session, err := h.services.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.services.Accounts.Me(r.Context(), principal(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
