package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"courier/internal/domain"
	"courier/internal/repository"
	"courier/internal/service"
)

// RiderHandler handles HTTP requests for riders, including the REST side of
// the dispatch flow for riders whose socket is down.
type RiderHandler struct {
	riderService *service.RiderService
	dispatch     *service.DispatchService
	riderRepo    repository.RiderRepository
}

// NewRiderHandler creates a new RiderHandler.
func NewRiderHandler(riderService *service.RiderService, dispatch *service.DispatchService, riderRepo repository.RiderRepository) *RiderHandler {
	return &RiderHandler{
		riderService: riderService,
		dispatch:     dispatch,
		riderRepo:    riderRepo,
	}
}

// RegisterRiderRequest is the HTTP request body for registering a rider.
type RegisterRiderRequest struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	VehicleClass string `json:"vehicle_class"`
	DeviceToken  string `json:"device_token,omitempty"`
}

// LocationRequest is the HTTP request body for a heartbeat.
type LocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PreferredAreaRequest is the HTTP request body for the preferred-area
// toggle.
type PreferredAreaRequest struct {
	Enabled bool    `json:"enabled"`
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
}

// AcceptRequest is the HTTP request body for accepting a booking. The
// coordinates are optional; pointers distinguish absent from (0,0).
type AcceptRequest struct {
	BookingID string   `json:"booking_id"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
}

// DeclineRequest is the HTTP request body for declining a booking.
type DeclineRequest struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason,omitempty"`
}

// StartRequest is the HTTP request body for starting a trip.
type StartRequest struct {
	BookingID string `json:"booking_id"`
}

// CompleteRequest is the HTTP request body for completing a booking. The
// coordinates are optional; pointers distinguish absent from (0,0).
type CompleteRequest struct {
	BookingID string   `json:"booking_id"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
}

// RiderResponse is the HTTP representation of a rider.
type RiderResponse struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	Phone                string  `json:"phone"`
	VehicleClass         string  `json:"vehicle_class"`
	Status               string  `json:"status"`
	PreferredAreaEnabled bool    `json:"preferred_area_enabled"`
	PreferredLat         float64 `json:"preferred_lat,omitempty"`
	PreferredLng         float64 `json:"preferred_lng,omitempty"`
}

// AcceptResponse is the hydrated assignment returned to the winning rider.
type AcceptResponse struct {
	Booking         BookingResponse `json:"booking"`
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone,omitempty"`
	PlatformFee     float64         `json:"platform_fee"`
	GST             float64         `json:"gst"`
	RiderEarnings   float64         `json:"rider_earnings"`
	RiderToPickupKm float64         `json:"rider_to_pickup_km,omitempty"`
}

// DeclineResponse reports the distinct decline count after a decline.
type DeclineResponse struct {
	BookingID    string `json:"booking_id"`
	DeclineCount int    `json:"decline_count"`
}

// JobResponse is one entry of an available/next-jobs listing.
type JobResponse struct {
	Booking    BookingResponse `json:"booking"`
	DistanceKm float64         `json:"distance_km"`
}

// CompleteResponse is the completion acknowledgement plus nearby pending
// work.
type CompleteResponse struct {
	Booking  BookingResponse `json:"booking"`
	NextJobs []JobResponse   `json:"next_jobs"`
}

// NearbyRiderResponse is one mirrored rider position.
type NearbyRiderResponse struct {
	RiderID string  `json:"rider_id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

func toRiderResponse(r *domain.Rider) RiderResponse {
	return RiderResponse{
		ID:                   r.ID,
		Name:                 r.Name,
		Phone:                r.Phone,
		VehicleClass:         string(r.VehicleClass),
		Status:               string(r.Status),
		PreferredAreaEnabled: r.PreferredAreaEnabled,
		PreferredLat:         r.PreferredLat,
		PreferredLng:         r.PreferredLng,
	}
}

func toJobResponses(jobs []service.NextJob) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp := toBookingResponse(j.Booking)
		resp.ShareToken = ""
		out = append(out, JobResponse{Booking: resp, DistanceKm: j.DistanceKm})
	}
	return out
}

// Register handles POST /v1/riders/register
func (h *RiderHandler) Register(c *gin.Context) {
	var req RegisterRiderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	rider, err := h.riderService.Register(c.Request.Context(), req.Name, req.Phone, domain.VehicleClass(req.VehicleClass), req.DeviceToken)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toRiderResponse(rider))
}

// GetAll handles GET /v1/riders
func (h *RiderHandler) GetAll(c *gin.Context) {
	riders, err := h.riderRepo.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]RiderResponse, 0, len(riders))
	for _, r := range riders {
		response = append(response, toRiderResponse(r))
	}
	respondJSON(c, http.StatusOK, response)
}

// GetRider handles GET /v1/riders/:id
func (h *RiderHandler) GetRider(c *gin.Context) {
	rider, err := h.riderService.GetRider(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRiderResponse(rider))
}

// UpdateLocation handles POST /v1/riders/:id/location
func (h *RiderHandler) UpdateLocation(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.riderService.Heartbeat(c.Request.Context(), c.Param("id"), req.Lat, req.Lng); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// SetPreferredArea handles POST /v1/riders/:id/preferred-area
func (h *RiderHandler) SetPreferredArea(c *gin.Context) {
	var req PreferredAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.riderService.SetPreferredArea(c.Request.Context(), c.Param("id"), req.Enabled, req.Lat, req.Lng); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// Accept handles POST /v1/riders/:id/accept
func (h *RiderHandler) Accept(c *gin.Context) {
	var req AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	var lat, lng float64
	hasLocation := req.Lat != nil && req.Lng != nil
	if hasLocation {
		lat, lng = *req.Lat, *req.Lng
	}
	result, err := h.dispatch.Accept(c.Request.Context(), req.BookingID, c.Param("id"), lat, lng, hasLocation)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, AcceptResponse{
		Booking:         toBookingResponse(result.Booking),
		CustomerName:    result.Customer.Name,
		CustomerPhone:   result.Customer.Phone,
		PlatformFee:     result.Fees.PlatformFee,
		GST:             result.Fees.GST,
		RiderEarnings:   result.Fees.RiderEarnings,
		RiderToPickupKm: result.RiderToPickupKm,
	})
}

// Decline handles POST /v1/riders/:id/decline
func (h *RiderHandler) Decline(c *gin.Context) {
	var req DeclineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	count, err := h.dispatch.Decline(c.Request.Context(), req.BookingID, c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, DeclineResponse{BookingID: req.BookingID, DeclineCount: count})
}

// Available handles GET /v1/riders/:id/bookings/available?lat=&lng=
func (h *RiderHandler) Available(c *gin.Context) {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	if latErr != nil || lngErr != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "lat and lng are required"})
		return
	}

	jobs, err := h.dispatch.Available(c.Request.Context(), c.Param("id"), lat, lng)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toJobResponses(jobs))
}

// Nearby handles GET /v1/nearby-riders?lat=&lng=&radius_km=
func (h *RiderHandler) Nearby(c *gin.Context) {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	if latErr != nil || lngErr != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "lat and lng are required"})
		return
	}
	radius, _ := strconv.ParseFloat(c.Query("radius_km"), 64)

	locations, err := h.riderService.NearbyRiders(c.Request.Context(), lat, lng, radius)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]NearbyRiderResponse, 0, len(locations))
	for _, l := range locations {
		response = append(response, NearbyRiderResponse{RiderID: l.RiderID, Lat: l.Lat, Lng: l.Lng})
	}
	respondJSON(c, http.StatusOK, response)
}

// Start handles POST /v1/riders/:id/start
func (h *RiderHandler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	booking, err := h.dispatch.StartTrip(c.Request.Context(), req.BookingID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// Complete handles POST /v1/riders/:id/complete
func (h *RiderHandler) Complete(c *gin.Context) {
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	var lat, lng float64
	hasLocation := req.Lat != nil && req.Lng != nil
	if hasLocation {
		lat, lng = *req.Lat, *req.Lng
	}
	booking, next, err := h.dispatch.Complete(c.Request.Context(), req.BookingID, c.Param("id"), lat, lng, hasLocation)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, CompleteResponse{
		Booking:  toBookingResponse(booking),
		NextJobs: toJobResponses(next),
	})
}
