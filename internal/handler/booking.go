package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"courier/internal/domain"
	"courier/internal/service"
)

// BookingHandler handles HTTP requests for bookings.
type BookingHandler struct {
	bookingService *service.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookingService *service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// DropRequest is one delivery stop in a create request.
type DropRequest struct {
	Address       string  `json:"address"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	ReceiverName  string  `json:"receiver_name,omitempty"`
	ReceiverPhone string  `json:"receiver_phone,omitempty"`
}

// CreateBookingRequest is the HTTP request body for creating a booking.
type CreateBookingRequest struct {
	CustomerID    string        `json:"customer_id"`
	PickupAddress string        `json:"pickup_address"`
	PickupLat     float64       `json:"pickup_lat"`
	PickupLng     float64       `json:"pickup_lng"`
	Drops         []DropRequest `json:"drops"`
	VehicleClass  string        `json:"vehicle_class"`
	Price         float64       `json:"price"`
	QuickFee      float64       `json:"quick_fee,omitempty"`
}

// CancelBookingRequest is the HTTP request body for cancelling a booking.
type CancelBookingRequest struct {
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason,omitempty"`
}

// TipRequest is the HTTP request body for adding a tip.
type TipRequest struct {
	Amount float64 `json:"amount"`
}

// ReviewRequest is the HTTP request body for adding a review.
type ReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// BookingResponse is the HTTP representation of a booking.
type BookingResponse struct {
	ID             string             `json:"id"`
	CustomerID     string             `json:"customer_id"`
	RiderID        string             `json:"rider_id,omitempty"`
	ShareToken     string             `json:"share_token,omitempty"`
	PickupAddress  string             `json:"pickup_address"`
	PickupLat      float64            `json:"pickup_lat"`
	PickupLng      float64            `json:"pickup_lng"`
	Drops          []domain.DropPoint `json:"drops"`
	VehicleClass   string             `json:"vehicle_class"`
	Status         string             `json:"status"`
	Price          float64            `json:"price"`
	QuickFee       float64            `json:"quick_fee"`
	TotalEarnings  float64            `json:"total_earnings"`
	TipAmount      float64            `json:"tip_amount,omitempty"`
	ReviewRating   int                `json:"review_rating,omitempty"`
	ReviewComment  string             `json:"review_comment,omitempty"`
	DeclineCount   int                `json:"decline_count"`
	BroadcastCount int                `json:"broadcast_count"`
	CreatedAt      string             `json:"created_at,omitempty"`
	CancelledAt    string             `json:"cancelled_at,omitempty"`
	CancelledBy    string             `json:"cancelled_by,omitempty"`
	CancelReason   string             `json:"cancel_reason,omitempty"`
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	resp := BookingResponse{
		ID:             b.ID,
		CustomerID:     b.CustomerID,
		RiderID:        b.RiderID,
		ShareToken:     b.ShareToken,
		PickupAddress:  b.PickupAddress,
		PickupLat:      b.PickupLat,
		PickupLng:      b.PickupLng,
		Drops:          b.Drops,
		VehicleClass:   string(b.VehicleClass),
		Status:         string(b.Status),
		Price:          b.Price,
		QuickFee:       b.QuickFee,
		TotalEarnings:  b.TotalEarnings(),
		TipAmount:      b.TipAmount,
		ReviewRating:   b.ReviewRating,
		ReviewComment:  b.ReviewComment,
		DeclineCount:   len(b.DeclinedBy),
		BroadcastCount: b.BroadcastCount,
	}
	if !b.CreatedAt.IsZero() {
		resp.CreatedAt = b.CreatedAt.Format(time.RFC3339)
	}
	if !b.CancelledAt.IsZero() {
		resp.CancelledAt = b.CancelledAt.Format(time.RFC3339)
		resp.CancelledBy = b.CancelledBy
		resp.CancelReason = b.CancelReason
	}
	return resp
}

// CreateBooking handles POST /v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	drops := make([]domain.DropPoint, 0, len(req.Drops))
	for _, d := range req.Drops {
		drops = append(drops, domain.DropPoint{
			Address:       d.Address,
			Lat:           d.Lat,
			Lng:           d.Lng,
			ReceiverName:  d.ReceiverName,
			ReceiverPhone: d.ReceiverPhone,
		})
	}

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), service.CreateBookingInput{
		CustomerID:    req.CustomerID,
		PickupAddress: req.PickupAddress,
		PickupLat:     req.PickupLat,
		PickupLng:     req.PickupLng,
		Drops:         drops,
		VehicleClass:  domain.VehicleClass(req.VehicleClass),
		Price:         req.Price,
		QuickFee:      req.QuickFee,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toBookingResponse(booking))
}

// GetBooking handles GET /v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookingService.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// TrackBooking handles GET /v1/track/:token — the anonymous share-link
// view. The share token is never echoed back.
func (h *BookingHandler) TrackBooking(c *gin.Context) {
	booking, err := h.bookingService.GetByShareToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := toBookingResponse(booking)
	resp.ShareToken = ""
	resp.CustomerID = ""
	respondJSON(c, http.StatusOK, resp)
}

// CancelBooking handles POST /v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	var req CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	booking, err := h.bookingService.CancelBooking(c.Request.Context(), c.Param("id"), req.CancelledBy, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// AddTip handles POST /v1/bookings/:id/tip
func (h *BookingHandler) AddTip(c *gin.Context) {
	var req TipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	booking, err := h.bookingService.AddTip(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// AddReview handles POST /v1/bookings/:id/review
func (h *BookingHandler) AddReview(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	booking, err := h.bookingService.AddReview(c.Request.Context(), c.Param("id"), req.Rating, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}
