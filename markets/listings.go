package markets

import (
	"encoding/json"

	cerrors "github.com/clawnet/clawnet/core/errors"
)

const subsystem = "market"

// ListingPublishPayload is the body of a market.listing.publish envelope.
type ListingPublishPayload struct {
	ID         string          `json:"id"`
	MarketType MarketType      `json:"marketType"`
	Title      string          `json:"title"`
	Info       *InfoData       `json:"info,omitempty"`
	Task       *TaskData       `json:"task,omitempty"`
	Capability *CapabilityData `json:"capability,omitempty"`
}

// ApplyListingPublish publishes a new listing owned by the issuer.
func ApplyListingPublish(s State, issuer string, payload []byte, now int64) (State, error) {
	var p ListingPublishPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	if p.ID == "" {
		return s, cerrors.Precondition(subsystem, "listing id is required")
	}
	if _, exists := s.Listings[p.ID]; exists {
		return s, cerrors.Precondition(subsystem, "listing id already exists")
	}
	switch p.MarketType {
	case MarketInfo:
		if p.Info == nil || p.Info.ContentHash == "" {
			return s, cerrors.Precondition(subsystem, "info listing requires contentHash")
		}
	case MarketTask:
		if p.Task == nil || p.Task.Budget.Sign() <= 0 {
			return s, cerrors.Precondition(subsystem, "task listing requires a positive budget")
		}
	case MarketCapability:
		if p.Capability == nil || p.Capability.CapabilityName == "" {
			return s, cerrors.Precondition(subsystem, "capability listing requires a capability name")
		}
	default:
		return s, cerrors.Precondition(subsystem, "unknown market type")
	}
	s.Listings[p.ID] = &Listing{
		ID:         p.ID,
		Seller:     issuer,
		MarketType: p.MarketType,
		Title:      p.Title,
		Info:       p.Info,
		Task:       p.Task,
		Capability: p.Capability,
		Status:     ListingActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return s, nil
}

// ListingUpdatePayload is the body of a market.listing.update envelope.
// Stats fields (viewCount, orderCount) are deliberately absent: they are
// derived aggregates the reducer maintains itself and sellers may not set
// directly.
type ListingUpdatePayload struct {
	ID     string          `json:"id"`
	Title  *string         `json:"title,omitempty"`
	Status *ListingStatus  `json:"status,omitempty"`
	Info   *InfoData       `json:"info,omitempty"`
	Task   *TaskData       `json:"task,omitempty"`
	Capability *CapabilityData `json:"capability,omitempty"`
}

var allowedListingStatusTransitions = map[ListingStatus]map[ListingStatus]bool{
	ListingActive:  {ListingPaused: true, ListingSoldOut: true, ListingExpired: true, ListingRemoved: true},
	ListingPaused:  {ListingActive: true, ListingExpired: true, ListingRemoved: true},
	ListingSoldOut: {ListingActive: true, ListingRemoved: true},
}

// ApplyListingUpdate edits a listing's own metadata or advances its status
// along allowedListingStatusTransitions: active<->paused, active<->sold_out,
// active|paused->expired, and active|paused|sold_out->removed.
func ApplyListingUpdate(s State, issuer string, payload []byte, now int64) (State, error) {
	var p ListingUpdatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	l, ok := s.Listings[p.ID]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown listing")
	}
	if l.Seller != issuer {
		return s, cerrors.Precondition(subsystem, "only the seller may update this listing")
	}
	clone := l.Clone()
	if p.Title != nil {
		clone.Title = *p.Title
	}
	if p.Info != nil {
		clone.Info = p.Info
	}
	if p.Task != nil {
		clone.Task = p.Task
	}
	if p.Capability != nil {
		clone.Capability = p.Capability
	}
	if p.Status != nil {
		if !allowedListingStatusTransitions[clone.Status][*p.Status] {
			return s, cerrors.Precondition(subsystem, "listing status transition not permitted")
		}
		clone.Status = *p.Status
	}
	clone.UpdatedAt = now
	s.Listings[p.ID] = clone
	return s, nil
}
