package models

import (
	"encoding/json"
	"fmt"
)

// NormalizeRecord converts a persisted booking record of any historical
// shape into a Booking. Older records used different key names for the same
// fields; this is the single place that fallback logic lives, so nothing
// downstream ever branches on which field name might exist.
func NormalizeRecord(raw map[string]any) (*Booking, error) {
	b := &Booking{}

	if v, ok := firstString(raw, "category", "reservation_type", "type"); ok {
		b.Category = ResourceCategory(v)
	}
	if !b.Category.Valid() {
		return nil, fmt.Errorf("record has no recognizable category")
	}

	if v, ok := firstNumber(raw, "id", "booking_id"); ok {
		b.ID = int64(v)
	}
	if v, ok := firstString(raw, "reference", "booking_reference", "external_id"); ok {
		b.Reference = v
	}

	if v, ok := firstString(raw, "check_in", "checkin_date", "start_date"); ok {
		d, err := ParseDate(v)
		if err != nil {
			return nil, err
		}
		b.CheckIn = d
	}
	if v, ok := firstString(raw, "check_out", "checkout_date", "end_date"); ok {
		d, err := ParseDate(v)
		if err != nil {
			return nil, err
		}
		b.CheckOut = d
	}

	for _, key := range []string{"usage_dates", "dates", "selected_days"} {
		if list, ok := raw[key].([]any); ok {
			for _, item := range list {
				s, ok := item.(string)
				if !ok {
					continue
				}
				d, err := ParseDate(s)
				if err != nil {
					return nil, err
				}
				b.UsageDates = append(b.UsageDates, d)
			}
			break
		}
	}

	for _, key := range []string{"instance_ids", "items", "selected_items"} {
		if list, ok := raw[key].([]any); ok {
			for _, item := range list {
				if s, ok := item.(string); ok {
					b.InstanceIDs = append(b.InstanceIDs, s)
				}
			}
			break
		}
	}

	if v, ok := firstString(raw, "payment_mode", "payment"); ok {
		b.PaymentMode = v
	}
	if v, ok := firstNumber(raw, "total_cost", "total", "amount"); ok {
		b.TotalCost = int64(v)
	}
	if v, ok := firstNumber(raw, "guest_count", "guests_total", "pax"); ok {
		b.GuestCount = int(v)
	}
	if v, ok := firstString(raw, "event_details", "event"); ok {
		b.EventDetails = v
	}
	if v, ok := firstString(raw, "status"); ok {
		b.Status = v
	}

	if g, ok := raw["guests"].(map[string]any); ok {
		b.Guests = make(map[string]GuestAllocation, len(g))
		for id, entry := range g {
			data, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			var alloc GuestAllocation
			if json.Unmarshal(data, &alloc) == nil {
				b.Guests[id] = alloc
			}
		}
	}

	return b, nil
}

func firstString(raw map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := raw[key].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func firstNumber(raw map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
