package handlers

import (
	"net/http"

	"campusmarket/internal/marketplace"
)

type createRequestRequest struct {
	IsService       bool     `json:"isService"`
	ServiceID       *int     `json:"serviceId"`
	ProductName     *string  `json:"productName" validate:"omitempty,max=100"`
	Description     string   `json:"description" validate:"max=2000"`
	DesiredPrice    float64  `json:"desiredPrice" validate:"gt=0"`
	Location        string   `json:"location" validate:"max=255"`
	Latitude        *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude       *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	CollegeFilterID *int     `json:"collegeFilterId"`
	AllowInterests  bool     `json:"allowInterests"`
}

type rejectInterestRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// CreateRequestHandler публикует новую заявку клиента
func (h *Handler) CreateRequestHandler(w http.ResponseWriter, r *http.Request) {
	var req createRequestRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	created, err := h.services.Marketplace.CreateRequest(r.Context(), principal(r).UserID, marketplace.CreateRequestInput{
		IsService:       req.IsService,
		ServiceID:       req.ServiceID,
		ProductName:     req.ProductName,
		Description:     req.Description,
		DesiredPrice:    req.DesiredPrice,
		Location:        req.Location,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		CollegeFilterID: req.CollegeFilterID,
		AllowInterests:  req.AllowInterests,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetClientRequestsHandler возвращает заявки текущего клиента
func (h *Handler) GetClientRequestsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	requests, err := h.services.Marketplace.ClientRequests(r.Context(), principal(r).UserID, params.page())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

// GetBidsForRequestHandler возвращает предложения по заявке владельца
func (h *Handler) GetBidsForRequestHandler(w http.ResponseWriter, r *http.Request) {
	requestID, err := urlID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	params := parsePaginationParams(r)
	bids, err := h.services.Marketplace.BidsForRequest(r.Context(), principal(r).UserID, requestID, params.page())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

// AcceptBidHandler принимает предложение и закрывает заявку
func (h *Handler) AcceptBidHandler(w http.ResponseWriter, r *http.Request) {
	bidID, err := urlID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	bid, err := h.services.Marketplace.AcceptBid(r.Context(), principal(r).UserID, bidID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bid)
}

func (h *Handler) AcceptInterestHandler(w http.ResponseWriter, r *http.Request) {
	interestID, err := urlID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.services.Marketplace.AcceptInterest(r.Context(), principal(r).UserID, interestID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (h *Handler) RejectInterestHandler(w http.ResponseWriter, r *http.Request) {
	interestID, err := urlID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// тело необязательно
	var req rejectInterestRequest
	if r.ContentLength != 0 && !h.decodeJSON(w, r, &req) {
		return
	}
	interest, err := h.services.Marketplace.RejectInterest(r.Context(), principal(r).UserID, interestID, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, interest)
}
