package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"costamar/internal/metrics"
	"costamar/internal/models"
)

var (
	errMissingDates  = errors.New("start_date and end_date (or dates) are required")
	errInvertedRange = errors.New("start_date must be before end_date")
	errTooManyDays   = errors.New("date range exceeds maximum of 90 days")
)

const (
	// MaxAvailabilityDaysRange is the maximum number of days allowed in an
	// availability request.
	MaxAvailabilityDaysRange = 90
)

// AvailabilityRequest is the request body for POST /api/availability.
// Either a start/end range or an explicit list of dates must be given.
type AvailabilityRequest struct {
	Category         string   `json:"category" validate:"required,oneof=room cottage function_hall"`
	StartDate        string   `json:"start_date,omitempty"`
	EndDate          string   `json:"end_date,omitempty"` // exclusive
	Dates            []string `json:"dates,omitempty"`    // non-contiguous days
	ExcludeBookingID int64    `json:"exclude_booking_id,omitempty"`
}

// DayAvailability is the per-date availability in API responses.
type DayAvailability struct {
	Date               string   `json:"date"`
	AvailableInstances []string `json:"available_instances"`
	BookedInstances    []string `json:"booked_instances"`
}

// AvailabilityResponse is the response for POST /api/availability.
type AvailabilityResponse struct {
	PerDate                 []DayAvailability `json:"per_date"`
	RangeAvailableInstances []string          `json:"range_available_instances"`
}

// handleAvailability returns per-date and range availability for a category.
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")

	var req AvailabilityRequest
	if err := s.decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dates, err := resolveRequestDates(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// One query covers the whole span, even for non-contiguous dates; the
	// in-between days are simply not reported back.
	span := spanOf(dates)
	category := models.ResourceCategory(req.Category)
	days, err := s.db.FetchAvailability(r.Context(), category, span.Start, span.EndExclusive, req.ExcludeBookingID)
	if err != nil {
		s.logger.Error().Err(err).Str("category", req.Category).Msg("availability query failed")
		writeError(w, http.StatusInternalServerError, "availability query failed")
		return
	}

	perDate := make([]DayAvailability, 0, len(dates))
	var intersection models.InstanceSet
	for _, d := range dates {
		day := days[models.DateKey(d)]
		perDate = append(perDate, DayAvailability{
			Date:               models.DateKey(d),
			AvailableInstances: day.AvailableInstances.Sorted(),
			BookedInstances:    day.BookedInstances.Sorted(),
		})
		if intersection == nil {
			intersection = day.AvailableInstances.Clone()
		} else {
			intersection = intersection.Intersect(day.AvailableInstances)
		}
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		PerDate:                 perDate,
		RangeAvailableInstances: intersection.Sorted(),
	})
}

// spanOf returns the half-open range covering every requested date. The
// resolver never yields an empty list.
func spanOf(dates []time.Time) models.DateRange {
	min, max := dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(min) {
			min = d
		}
		if d.After(max) {
			max = d
		}
	}
	return models.NewDateRange(min, max.AddDate(0, 0, 1))
}

func resolveRequestDates(req *AvailabilityRequest) ([]time.Time, error) {
	if len(req.Dates) > 0 {
		dates := make([]time.Time, 0, len(req.Dates))
		for _, s := range req.Dates {
			d, err := models.ParseDate(s)
			if err != nil {
				return nil, err
			}
			dates = append(dates, d)
		}
		if len(dates) > MaxAvailabilityDaysRange {
			return nil, errTooManyDays
		}
		return dates, nil
	}

	if req.StartDate == "" || req.EndDate == "" {
		return nil, errMissingDates
	}
	start, err := models.ParseDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := models.ParseDate(req.EndDate)
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, errInvertedRange
	}
	days := models.NewDateRange(start, end).Days()
	if len(days) > MaxAvailabilityDaysRange {
		return nil, errTooManyDays
	}
	return days, nil
}

// BookingRequest is the create/update payload for bookings.
type BookingRequest struct {
	Category     string                            `json:"category" validate:"required,oneof=room cottage function_hall"`
	CheckIn      string                            `json:"check_in,omitempty"`
	CheckOut     string                            `json:"check_out,omitempty"`
	UsageDates   []string                          `json:"usage_dates,omitempty"`
	InstanceIDs  []string                          `json:"instance_ids" validate:"required,min=1"`
	Guests       map[string]models.GuestAllocation `json:"guests,omitempty"`
	GuestCount   int                               `json:"guest_count,omitempty" validate:"gte=0"`
	PaymentMode  string                            `json:"payment_mode" validate:"required"`
	TotalCost    int64                             `json:"total_cost" validate:"gte=0"`
	EventDetails string                            `json:"event_details,omitempty"`
	Reference    string                            `json:"reference,omitempty"`
}

func (req *BookingRequest) toBooking() (*models.Booking, error) {
	b := &models.Booking{
		Category:     models.ResourceCategory(req.Category),
		InstanceIDs:  req.InstanceIDs,
		Guests:       req.Guests,
		GuestCount:   req.GuestCount,
		PaymentMode:  req.PaymentMode,
		TotalCost:    req.TotalCost,
		EventDetails: req.EventDetails,
		Reference:    req.Reference,
		Status:       "pending",
	}
	var err error
	if req.CheckIn != "" {
		if b.CheckIn, err = models.ParseDate(req.CheckIn); err != nil {
			return nil, err
		}
	}
	if req.CheckOut != "" {
		if b.CheckOut, err = models.ParseDate(req.CheckOut); err != nil {
			return nil, err
		}
	}
	for _, s := range req.UsageDates {
		d, err := models.ParseDate(s)
		if err != nil {
			return nil, err
		}
		b.UsageDates = append(b.UsageDates, d)
	}
	return b, nil
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")

	var req BookingRequest
	if err := s.decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := req.toBooking()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.db.CreateBooking(r.Context(), b)
	if err != nil {
		s.logger.Error().Err(err).Msg("create booking failed")
		writeError(w, http.StatusInternalServerError, "create booking failed")
		return
	}
	metrics.IncBookingMutation("created", string(created.Category))
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("update_booking")

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	var req BookingRequest
	if err := s.decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := req.toBooking()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.db.UpdateBooking(r.Context(), id, b)
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", id).Msg("update booking failed")
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	metrics.IncBookingMutation("updated", string(updated.Category))
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_bookings")

	category := models.ResourceCategory(r.URL.Query().Get("category"))
	if category != "" && !category.Valid() {
		writeError(w, http.StatusBadRequest, "unknown category")
		return
	}
	status := r.URL.Query().Get("status")

	bookings, err := s.db.ListBookings(r.Context(), category, status)
	if err != nil {
		s.logger.Error().Err(err).Msg("list bookings failed")
		writeError(w, http.StatusInternalServerError, "list bookings failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_booking")

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	if err := s.db.CancelBooking(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	metrics.IncBookingMutation("cancelled", "")
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}
