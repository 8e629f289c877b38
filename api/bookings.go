package api

import (
	"fmt"
	"net/http"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	FlightID      string               `json:"flight_id"`
	PassengerName string               `json:"passenger_name"`
	SeatNumber    string               `json:"seat_number"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

// Register expects router to already run Auth.
func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("", h.mine)
	router.GET("/all", RequireAdmin(), h.all)
	router.GET("/:pnr", h.get)
	router.PATCH("/:pnr", h.update)
	router.DELETE("/:pnr", h.cancel)
	router.GET("/:pnr/qr", h.qr)
}

func (h *BookingHandler) create(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	view, err := h.service.CreateBooking(c.Request.Context(), identity, booking.CreateBookingInput{
		FlightCode:    req.FlightID,
		PassengerName: req.PassengerName,
		SeatNumber:    req.SeatNumber,
		PaymentStatus: req.PaymentStatus,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *BookingHandler) mine(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	views, err := h.service.ListUserBookings(c.Request.Context(), identity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": views, "count": len(views)})
}

func (h *BookingHandler) all(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	list, err := h.service.ListAllBookings(c.Request.Context(), identity, page)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *BookingHandler) get(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	view, err := h.service.GetBooking(c.Request.Context(), identity, c.Param("pnr"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *BookingHandler) update(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	var patch domain.BookingPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	view, err := h.service.UpdateBooking(c.Request.Context(), identity, c.Param("pnr"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *BookingHandler) cancel(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	view, err := h.service.CancelBooking(c.Request.Context(), identity, c.Param("pnr"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// qr renders the boarding pass payload of a booking as a PNG.
func (h *BookingHandler) qr(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	view, err := h.service.GetBooking(c.Request.Context(), identity, c.Param("pnr"))
	if err != nil {
		writeError(c, err)
		return
	}

	png, err := qrcode.Encode(boardingPass(view), qrcode.Medium, qrSize)
	if err != nil {
		writeError(c, fmt.Errorf("encode qr for %s: %w", view.PNR, err))
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func boardingPass(v *domain.BookingView) string {
	return fmt.Sprintf("PNR:%s|FLIGHT:%s|SEAT:%s|NAME:%s|STATUS:%s",
		v.PNR, v.Flight.Code, v.SeatNumber, v.PassengerName, v.Status)
}
