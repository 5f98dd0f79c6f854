package handlers

import (
	"net/http"
	"strconv"

	"campusmarket/internal/apperr"
	"campusmarket/models"
)

type bulkDeleteRequest struct {
	IDs []int `json:"ids" validate:"required,min=1,max=500,dive,gt=0"`
}

type smsBroadcastRequest struct {
	Role    *string `json:"role" validate:"omitempty,oneof=admin service_provider client"`
	Message string  `json:"message" validate:"required,max=480"`
}

// Категории

func (h *Handler) ListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	list, total, err := h.Store.ListCategories(r.Context(), params.Limit, params.Offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Category{}
	}
	writeJSON(w, http.StatusOK, paged(list, params, total))
}

func (h *Handler) GetCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.Store.GetCategory(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) CreateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var c models.Category
	if !h.decodeJSON(w, r, &c) {
		return
	}
	if err := h.Store.CreateCategory(r.Context(), &c); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) UpdateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var c models.Category
	if !h.decodeJSON(w, r, &c) {
		return
	}
	c.ID = id
	if err := h.Store.UpdateCategory(r.Context(), &c); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.DeleteCategory(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Category deleted"})
}

func (h *Handler) BulkDeleteCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	n, err := h.Store.DeleteCategories(r.Context(), req.IDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// Товары

func (h *Handler) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	var categoryID *int
	if v := r.URL.Query().Get("categoryId"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			writeMessage(w, http.StatusBadRequest, "Invalid categoryId")
			return
		}
		categoryID = &id
	}

	list, total, err := h.Store.ListProducts(r.Context(), categoryID, params.Limit, params.Offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Product{}
	}
	writeJSON(w, http.StatusOK, paged(list, params, total))
}

func (h *Handler) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.Store.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var p models.Product
	if !h.decodeJSON(w, r, &p) {
		return
	}
	if err := h.Store.CreateProduct(r.Context(), &p); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var p models.Product
	if !h.decodeJSON(w, r, &p) {
		return
	}
	p.ID = id
	if err := h.Store.UpdateProduct(r.Context(), &p); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.DeleteProduct(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted"})
}

func (h *Handler) BulkDeleteProductsHandler(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	n, err := h.Store.DeleteProducts(r.Context(), req.IDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// SMSBroadcastHandler рассылает SMS всем пользователям с телефоном, опционально одной роли
func (h *Handler) SMSBroadcastHandler(w http.ResponseWriter, r *http.Request) {
	var req smsBroadcastRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if h.services.Broadcaster == nil {
		h.writeError(w, r, apperr.External("SMS channel is not configured", nil))
		return
	}

	var role *models.Role
	if req.Role != nil {
		v := models.Role(*req.Role)
		role = &v
	}
	res, err := h.services.Broadcaster.Broadcast(r.Context(), role, req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.log.Info().Int("recipients", res.Recipients).Int("sent", res.Sent).Msg("sms broadcast finished")
	writeJSON(w, http.StatusOK, res)
}

// Публичные справочники

func (h *Handler) ListServicesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListServices(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Service{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) ListCollegesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListColleges(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.College{}
	}
	writeJSON(w, http.StatusOK, list)
}
