package markets

import (
	"encoding/json"

	cerrors "github.com/clawnet/clawnet/core/errors"
	ctypes "github.com/clawnet/clawnet/core/types"
)

// OrderCreatePayload is the body of a market.order.create envelope.
type OrderCreatePayload struct {
	ID          string        `json:"id"`
	ListingID   string        `json:"listingId"`
	Quantity    int64         `json:"quantity,omitempty"`
	TotalAmount ctypes.Amount `json:"totalAmount"`
}

// ApplyOrderCreate places a new order against an active listing. issuer is
// the buyer.
func ApplyOrderCreate(s State, issuer string, payload []byte, now int64) (State, error) {
	var p OrderCreatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	if p.ID == "" {
		return s, cerrors.Precondition(subsystem, "order id is required")
	}
	if _, exists := s.Orders[p.ID]; exists {
		return s, cerrors.Precondition(subsystem, "order id already exists")
	}
	listing, ok := s.Listings[p.ListingID]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown listing")
	}
	if listing.Status != ListingActive {
		return s, cerrors.Precondition(subsystem, "listing is not active")
	}
	if listing.Seller == issuer {
		return s, cerrors.Precondition(subsystem, "seller cannot order their own listing")
	}
	s.Orders[p.ID] = &Order{
		ID:          p.ID,
		ListingID:   p.ListingID,
		Buyer:       issuer,
		Seller:      listing.Seller,
		Quantity:    p.Quantity,
		TotalAmount: p.TotalAmount,
		Status:      OrderPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	listingClone := listing.Clone()
	listingClone.OrderCount++
	listingClone.UpdatedAt = now
	s.Listings[p.ListingID] = listingClone
	return s, nil
}

// OrderUpdatePayload is the body of a market.order.update envelope: a single
// FSM transition plus any side-effect fields it carries.
type OrderUpdatePayload struct {
	ID          string  `json:"id"`
	Status      OrderStatus `json:"status"`
	DeliveryRef string  `json:"deliveryRef,omitempty"`
	EscrowID    string  `json:"escrowId,omitempty"`
	ContractID  string  `json:"contractId,omitempty"`
	Review      *Review `json:"review,omitempty"`
}

// ReviewAttached reports which party's review was attached by an
// ApplyOrderUpdate call, so the engine can synthesize the corresponding
// reputation.record event; it is not itself a state mutation.
type ReviewAttached struct {
	OrderID  string
	Reviewer string
	Target   string
	Rating   int
}

// ApplyOrderUpdate advances an order's status along its FSM, rejecting
// transitions the machine does not permit or where resourcePrev (checked by
// the engine, not here) is stale. A review may be attached exactly once per
// party, only once the order is completed.
func ApplyOrderUpdate(s State, issuer string, payload []byte, now int64) (State, *ReviewAttached, error) {
	var p OrderUpdatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, nil, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	o, ok := s.Orders[p.ID]
	if !ok {
		return s, nil, cerrors.Precondition(subsystem, "unknown order")
	}
	if issuer != o.Buyer && issuer != o.Seller {
		return s, nil, cerrors.Precondition(subsystem, "only buyer or seller may update this order")
	}
	clone := o.Clone()
	var attached *ReviewAttached

	if p.Status != "" && p.Status != clone.Status {
		if !TransitionAllowed(clone.Status, p.Status) {
			return s, nil, cerrors.Precondition(subsystem, "order transition not permitted")
		}
		clone.Status = p.Status
	}
	if p.DeliveryRef != "" {
		clone.DeliveryRef = p.DeliveryRef
	}
	if p.EscrowID != "" {
		if clone.Status == OrderPaid && clone.EscrowID == "" {
			// The escrow id is recorded as given: neither this function
			// nor the engine checks wallet state for a funded escrow.
		}
		clone.EscrowID = p.EscrowID
	}
	if p.ContractID != "" {
		clone.ContractID = p.ContractID
	}
	if p.Review != nil {
		if clone.Status != OrderCompleted {
			return s, nil, cerrors.Precondition(subsystem, "reviews may only be attached after completion")
		}
		if p.Review.Rating < 1 || p.Review.Rating > 5 {
			return s, nil, cerrors.Precondition(subsystem, "rating must be between 1 and 5")
		}
		review := *p.Review
		review.RatedAt = now
		var target string
		switch issuer {
		case o.Buyer:
			if clone.BuyerReview != nil {
				return s, nil, cerrors.Precondition(subsystem, "buyer has already reviewed this order")
			}
			clone.BuyerReview = &review
			target = o.Seller
		case o.Seller:
			if clone.SellerReview != nil {
				return s, nil, cerrors.Precondition(subsystem, "seller has already reviewed this order")
			}
			clone.SellerReview = &review
			target = o.Buyer
		}
		attached = &ReviewAttached{OrderID: o.ID, Reviewer: issuer, Target: target, Rating: review.Rating}
	}
	clone.UpdatedAt = now
	s.Orders[p.ID] = clone
	return s, attached, nil
}
