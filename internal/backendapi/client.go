// Package backendapi is the HTTP client for the reservation backend. It
// implements the availability source and persistence interfaces the engine
// consumes, with optional Redis read-through caching for availability.
package backendapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"costamar/internal/models"
)

// Client calls the reservation backend API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// New constructs a client for the given base URL and API key.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseRedisCache configures optional Redis caching for availability queries.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

type availabilityRequest struct {
	Category         string `json:"category"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	ExcludeBookingID int64  `json:"exclude_booking_id,omitempty"`
}

type dayAvailability struct {
	Date               string   `json:"date"`
	AvailableInstances []string `json:"available_instances"`
	BookedInstances    []string `json:"booked_instances"`
}

type availabilityResponse struct {
	PerDate                 []dayAvailability `json:"per_date"`
	RangeAvailableInstances []string          `json:"range_available_instances"`
}

// FetchAvailability implements availability.Source over the backend API.
func (c *Client) FetchAvailability(ctx context.Context, category models.ResourceCategory, start, endExclusive time.Time, excludeBookingID int64) (map[string]models.AvailabilityDay, error) {
	req := availabilityRequest{
		Category:         string(category),
		StartDate:        models.DateKey(start),
		EndDate:          models.DateKey(endExclusive),
		ExcludeBookingID: excludeBookingID,
	}
	cacheKey := fmt.Sprintf("availability:%s:%s:%s:%d", category, req.StartDate, req.EndDate, excludeBookingID)

	var resp availabilityResponse
	if !c.readCache(ctx, cacheKey, &resp) {
		if err := c.doJSON(ctx, http.MethodPost, "/api/availability", req, &resp); err != nil {
			return nil, err
		}
		c.writeCache(ctx, cacheKey, resp)
	}

	out := make(map[string]models.AvailabilityDay, len(resp.PerDate))
	for _, day := range resp.PerDate {
		d, err := models.ParseDate(day.Date)
		if err != nil {
			return nil, err
		}
		out[day.Date] = models.AvailabilityDay{
			Date:               d,
			AvailableInstances: models.NewInstanceSet(day.AvailableInstances...),
			BookedInstances:    models.NewInstanceSet(day.BookedInstances...),
		}
	}
	return out, nil
}

// CreateBooking implements booking.Persistence.
func (c *Client) CreateBooking(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	var created models.Booking
	if err := c.doJSON(ctx, http.MethodPost, "/api/bookings", bookingPayload(b), &created); err != nil {
		return nil, err
	}
	c.invalidateCache(ctx)
	return &created, nil
}

// UpdateBooking implements booking.Persistence.
func (c *Client) UpdateBooking(ctx context.Context, id int64, b *models.Booking) (*models.Booking, error) {
	var updated models.Booking
	path := fmt.Sprintf("/api/bookings/%d", id)
	if err := c.doJSON(ctx, http.MethodPut, path, bookingPayload(b), &updated); err != nil {
		return nil, err
	}
	c.invalidateCache(ctx)
	return &updated, nil
}

// ListBookings fetches bookings filtered by category and status.
func (c *Client) ListBookings(ctx context.Context, category models.ResourceCategory, status string) ([]models.Booking, error) {
	path := fmt.Sprintf("/api/bookings?category=%s&status=%s", category, status)
	var wrap struct {
		Bookings []models.Booking `json:"bookings"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &wrap); err != nil {
		return nil, err
	}
	return wrap.Bookings, nil
}

// CancelBooking cancels a booking by ID.
func (c *Client) CancelBooking(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/api/bookings/%d", id)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return err
	}
	c.invalidateCache(ctx)
	return nil
}

// bookingPayload shapes the wire request the API expects.
func bookingPayload(b *models.Booking) map[string]any {
	payload := map[string]any{
		"category":     string(b.Category),
		"instance_ids": b.InstanceIDs,
		"payment_mode": b.PaymentMode,
		"total_cost":   b.TotalCost,
	}
	if !b.CheckIn.IsZero() {
		payload["check_in"] = models.DateKey(b.CheckIn)
	}
	if !b.CheckOut.IsZero() {
		payload["check_out"] = models.DateKey(b.CheckOut)
	}
	if len(b.UsageDates) > 0 {
		dates := make([]string, len(b.UsageDates))
		for i, d := range b.UsageDates {
			dates[i] = models.DateKey(d)
		}
		payload["usage_dates"] = dates
	}
	if len(b.Guests) > 0 {
		payload["guests"] = b.Guests
	}
	if b.GuestCount > 0 {
		payload["guest_count"] = b.GuestCount
	}
	if b.EventDetails != "" {
		payload["event_details"] = b.EventDetails
	}
	if b.Reference != "" {
		payload["reference"] = b.Reference
	}
	return payload
}

// invalidateCache drops every cached availability entry. Mutations make the
// cached responses stale immediately; waiting out the TTL would let a
// submit-time re-validation read pre-mutation availability.
func (c *Client) invalidateCache(ctx context.Context) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	var cursor uint64
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, "availability:*", 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			_ = c.redis.Del(ctx, keys...).Err()
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("http %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
