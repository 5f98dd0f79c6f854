package handlers

import (
	"net/http"
	"strconv"

	"campusmarket/internal/marketplace"
)

type createBidRequest struct {
	RequestID int     `json:"requestId" validate:"required,gt=0"`
	Price     float64 `json:"price" validate:"gt=0"`
	Message   *string `json:"message" validate:"omitempty,max=1000"`
}

// CreateBidHandler создает предложение исполнителя по заявке
func (h *Handler) CreateBidHandler(w http.ResponseWriter, r *http.Request) {
	var req createBidRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	bid, err := h.services.Marketplace.CreateBid(r.Context(), principal(r).UserID, marketplace.CreateBidInput{
		RequestID: req.RequestID,
		Price:     req.Price,
		Message:   req.Message,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

// GetProviderBidsHandler возвращает предложения текущего исполнителя
func (h *Handler) GetProviderBidsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	bids, err := h.services.Marketplace.ProviderBids(r.Context(), principal(r).UserID, params.page())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

// GetProviderRequestsHandler отдает ленту открытых заявок рядом с исполнителем
func (h *Handler) GetProviderRequestsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := marketplace.FeedQuery{
		FilterByServices: q.Get("filterByServices") == "true",
		Page:             parsePaginationParams(r).page(),
	}

	var err error
	if query.Lat, err = optionalFloat(q.Get("lat")); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid lat")
		return
	}
	if query.Lng, err = optionalFloat(q.Get("lng")); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid lng")
		return
	}
	if v := q.Get("range"); v != "" {
		if query.RangeKm, err = strconv.ParseFloat(v, 64); err != nil || query.RangeKm <= 0 {
			writeMessage(w, http.StatusBadRequest, "Invalid range")
			return
		}
	}

	items, err := h.services.Marketplace.ProviderRequests(r.Context(), principal(r).UserID, query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) ExpressInterestHandler(w http.ResponseWriter, r *http.Request) {
	requestID, err := urlID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	interest, err := h.services.Marketplace.ExpressInterest(r.Context(), principal(r).UserID, requestID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, interest)
}

func (h *Handler) GetProviderInterestsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	interests, err := h.services.Marketplace.ProviderInterests(r.Context(), principal(r).UserID, params.page())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, interests)
}

func (h *Handler) WithdrawInterestHandler(w http.ResponseWriter, r *http.Request) {
	interestID, err := urlID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.services.Marketplace.WithdrawInterest(r.Context(), principal(r).UserID, interestID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Interest withdrawn"})
}

func optionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
