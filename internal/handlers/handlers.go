package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"campusmarket/internal/apperr"
	"campusmarket/internal/auth"
	"campusmarket/internal/marketplace"
	"campusmarket/internal/middleware"
	"campusmarket/internal/notify"
	"campusmarket/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1048576

// Accounts is the auth service.
type Accounts interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Me(ctx context.Context, userID int) (*models.User, error)
}

// Marketplace is the request, bid and interest lifecycle.
type Marketplace interface {
	CreateRequest(ctx context.Context, clientID int, in marketplace.CreateRequestInput) (*models.Request, error)
	ClientRequests(ctx context.Context, clientID int, page marketplace.Page) ([]models.Request, error)
	BidsForRequest(ctx context.Context, clientID, requestID int, page marketplace.Page) ([]models.Bid, error)
	AcceptBid(ctx context.Context, clientID, bidID int) (*models.Bid, error)

	CreateBid(ctx context.Context, userID int, in marketplace.CreateBidInput) (*models.Bid, error)
	ProviderBids(ctx context.Context, userID int, page marketplace.Page) ([]models.Bid, error)
	ProviderRequests(ctx context.Context, userID int, q marketplace.FeedQuery) ([]marketplace.FeedItem, error)

	ExpressInterest(ctx context.Context, userID, requestID int) (*models.Interest, error)
	AcceptInterest(ctx context.Context, clientID, interestID int) (*marketplace.AcceptResult, error)
	RejectInterest(ctx context.Context, clientID, interestID int, reason string) (*models.Interest, error)
	WithdrawInterest(ctx context.Context, userID, interestID int) error
	ProviderInterests(ctx context.Context, userID int, page marketplace.Page) ([]models.Interest, error)
}

type PasswordReset interface {
	SendCode(ctx context.Context, phone string) error
	VerifyCode(ctx context.Context, phone, code string) (string, error)
	ResetPassword(ctx context.Context, token, password string) error
}

type Broadcaster interface {
	Broadcast(ctx context.Context, role *models.Role, message string) (*notify.BroadcastResult, error)
}

// Services groups the domain services behind the HTTP layer. Any of them may be nil in tests.
type Services struct {
	Accounts    Accounts
	Marketplace Marketplace
	Reset       PasswordReset
	Broadcaster Broadcaster
}

// Handler оборачивает Storage и сервисы для HTTP
type Handler struct {
	Store    StorageInterface
	services Services
	validate *validator.Validate
	log      zerolog.Logger

	// errorDetails adds the underlying error to 5xx bodies
	errorDetails bool
}

// NewHandler создает новый Handler
func NewHandler(store StorageInterface, services Services, log zerolog.Logger, errorDetails bool) *Handler {
	return &Handler{
		Store:        store,
		services:     services,
		validate:     validator.New(),
		log:          log,
		errorDetails: errorDetails,
	}
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeError maps an application error onto the response.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	resp := errorResponse{Error: apperr.MessageOf(err)}

	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		if h.errorDetails {
			resp.Details = err.Error()
		}
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a size-limited JSON body and validates it.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	// Ограничение размера тела, чтобы избежать DoS
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON format")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeMessage(w, http.StatusBadRequest, getAllErrorMessages(verrs))
			return false
		}
		writeMessage(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func getAllErrorMessages(errs validator.ValidationErrors) string {
	messages := make([]string, 0, len(errs))
	for _, fe := range errs {
		messages = append(messages, fmt.Sprintf("'%s': %s", fe.Field(), getMessage(fe)))
	}
	return strings.Join(messages, "; ")
}

func getMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}

type PaginationParams struct {
	Page   int
	Limit  int
	Offset int
}

// parsePaginationParams парсит page, limit и offset из query, с дефолтами и ограничениями
func parsePaginationParams(r *http.Request) PaginationParams {
	params := PaginationParams{Page: 1, Limit: 10}
	q := r.URL.Query()

	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 100 {
		params.Limit = l
	}
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		params.Page = p
	}
	params.Offset = (params.Page - 1) * params.Limit
	// явный offset важнее page
	if o, err := strconv.Atoi(q.Get("offset")); err == nil && o >= 0 {
		params.Offset = o
	}
	return params
}

func (p PaginationParams) page() marketplace.Page {
	return marketplace.Page{Limit: p.Limit, Offset: p.Offset}
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type pagedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

func paged(data interface{}, params PaginationParams, total int) pagedResponse {
	return pagedResponse{
		Data: data,
		Pagination: Pagination{
			Page:       params.Page,
			Limit:      params.Limit,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(params.Limit))),
		},
	}
}

func urlID(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		return 0, apperr.Validation("Invalid " + name)
	}
	return id, nil
}

func principal(r *http.Request) middleware.Principal {
	p, _ := middleware.PrincipalFrom(r.Context())
	return p
}
