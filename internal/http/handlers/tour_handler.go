// Tour catalog handlers (public, read-only).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/fanclub-backend/internal/domain"
	"github.com/tbourn/fanclub-backend/internal/services"
	"github.com/tbourn/fanclub-backend/internal/utils"
)

// TourView is a tour plus the number of tickets still on sale.
type TourView struct {
	domain.Tour
	Remaining int `json:"remaining" example:"42"`
}

// ListToursResponse wraps a page of tours and pagination information.
type ListToursResponse struct {
	Tours      []TourView `json:"tours"`
	Pagination Pagination `json:"pagination"`
}

func toTourView(t domain.Tour) TourView {
	return TourView{Tour: t, Remaining: t.Remaining()}
}

// ListTours godoc
// @ID          listTours
// @Summary     List upcoming tours (paginated)
// @Description Returns active tours ordered by date with remaining ticket counts.
// @Tags        Tours
// @Produce     json
//
// @Param       page       query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListToursResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /tours [get]
func (h *Handlers) ListTours(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.tours.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	views := make([]TourView, 0, len(items))
	for _, t := range items {
		views = append(views, toTourView(t))
	}
	ok(c, http.StatusOK, ListToursResponse{
		Tours:      views,
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetTour godoc
// @ID          getTour
// @Summary     Get a tour
// @Tags        Tours
// @Produce     json
//
// @Param       id  path  int  true  "Tour ID"  example(3)
//
// @Success     200  {object} handlers.TourView
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /tours/{id} [get]
func (h *Handlers) GetTour(c *gin.Context) {
	t, err := h.tours.Get(c.Request.Context(), utils.ParseID(c.Param("id")))
	if err != nil {
		if errors.Is(err, services.ErrTourNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "tour not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, toTourView(*t))
}
