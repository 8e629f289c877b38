package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/gin-gonic/gin"
)

const searchDateLayout = "2006-01-02"

type FlightHandler struct {
	service flights.FlightUseCase
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	return &FlightHandler{service: service}
}

// Register mounts the read routes publicly and the write routes behind auth
// for administrators.
func (h *FlightHandler) Register(router *gin.RouterGroup, auth gin.HandlerFunc) {
	router.GET("", h.list)
	router.GET("/search", h.search)
	router.GET("/:code", h.get)
	router.GET("/:code/seats", h.seats)

	admin := router.Group("", auth, RequireAdmin())
	admin.POST("", h.create)
	admin.PUT("/:code", h.update)
	admin.DELETE("/:code", h.delete)
}

func (h *FlightHandler) list(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	list, err := h.service.List(c.Request.Context(), page)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *FlightHandler) search(c *gin.Context) {
	criteria := domain.SearchCriteria{
		Source:      c.Query("source"),
		Destination: c.Query("destination"),
	}
	if raw := c.Query("date"); raw != "" {
		date, err := time.Parse(searchDateLayout, raw)
		if err != nil {
			badRequest(c, "date must be YYYY-MM-DD")
			return
		}
		criteria.Date = date
	}
	if raw := c.Query("passengers"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "passengers must be a number")
			return
		}
		criteria.Passengers = n
	}

	views, err := h.service.Search(c.Request.Context(), criteria)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flights": views, "count": len(views)})
}

func (h *FlightHandler) get(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *FlightHandler) seats(c *gin.Context) {
	seats, err := h.service.Seats(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, seats)
}

func (h *FlightHandler) create(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	var input flights.CreateFlightInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	view, err := h.service.Create(c.Request.Context(), identity, input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *FlightHandler) update(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	var patch domain.FlightPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	view, err := h.service.Update(c.Request.Context(), identity, c.Param("code"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *FlightHandler) delete(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), identity, c.Param("code")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func pageQuery(c *gin.Context) (domain.Page, bool) {
	var page domain.Page
	for _, q := range []struct {
		name string
		dst  *int
	}{{"page", &page.Number}, {"per_page", &page.PerPage}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, q.name+" must be a positive number")
			return domain.Page{}, false
		}
		*q.dst = n
	}
	return page, true
}

func requireIdentity(c *gin.Context) (domain.Identity, bool) {
	identity, ok := identityFrom(c)
	if !ok {
		writeError(c, domain.ErrUnauthorized)
	}
	return identity, ok
}
