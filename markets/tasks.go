package markets

import (
	"encoding/json"

	cerrors "github.com/clawnet/clawnet/core/errors"
	ctypes "github.com/clawnet/clawnet/core/types"
)

// BidPlacePayload is the body of a market.bid.place envelope.
type BidPlacePayload struct {
	ID        string        `json:"id"`
	ListingID string        `json:"listingId"`
	Amount    ctypes.Amount `json:"amount"`
	Note      string        `json:"note,omitempty"`
}

// ApplyBidPlace records a bid against an open task listing. issuer is the
// bidder.
func ApplyBidPlace(s State, issuer string, payload []byte, now int64) (State, error) {
	var p BidPlacePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	listing, ok := s.Listings[p.ListingID]
	if !ok || listing.MarketType != MarketTask || listing.Task == nil {
		return s, cerrors.Precondition(subsystem, "unknown task listing")
	}
	if listing.Status != ListingActive {
		return s, cerrors.Precondition(subsystem, "task listing is not active")
	}
	if listing.Seller == issuer {
		return s, cerrors.Precondition(subsystem, "seller cannot bid on their own task")
	}
	if _, exists := s.Bids[p.ID]; exists {
		return s, cerrors.Precondition(subsystem, "bid id already exists")
	}
	if p.Amount.Sign() <= 0 {
		return s, cerrors.Precondition(subsystem, "bid amount must be positive")
	}
	s.Bids[p.ID] = Bid{
		ID:        p.ID,
		ListingID: p.ListingID,
		Bidder:    issuer,
		Amount:    p.Amount,
		Note:      p.Note,
		Status:    BidOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s, nil
}

// TaskBidAcceptPayload is the body of a task.bid.accept envelope. ContractID
// and OrderID are caller-supplied ids for the records this event atomically
// creates; when either is left empty, the engine derives it
// deterministically from the accept envelope's own hash before invoking
// reducers, so every honest replay produces the same ids.
type TaskBidAcceptPayload struct {
	ListingID  string `json:"listingId"`
	BidID      string `json:"bidId"`
	ContractID string `json:"contractId"`
	OrderID    string `json:"orderId"`
}

// ApplyTaskBidAccept accepts one bid against a task listing, rejects every
// other open bid on the same listing, and creates the order referencing the
// contract the engine created for this accept event in the same step
// (contracts.ApplyCreate is invoked by the engine before this function, so
// the contract already exists when the order is recorded).
func ApplyTaskBidAccept(s State, issuer string, payload []byte, now int64) (State, error) {
	var p TaskBidAcceptPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	listing, ok := s.Listings[p.ListingID]
	if !ok || listing.MarketType != MarketTask {
		return s, cerrors.Precondition(subsystem, "unknown task listing")
	}
	if listing.Seller != issuer {
		return s, cerrors.Precondition(subsystem, "only the task owner may accept a bid")
	}
	winning, ok := s.Bids[p.BidID]
	if !ok || winning.ListingID != p.ListingID {
		return s, cerrors.Precondition(subsystem, "unknown bid")
	}
	if winning.Status != BidOpen {
		return s, cerrors.Precondition(subsystem, "bid is not open")
	}
	if _, exists := s.Orders[p.OrderID]; exists {
		return s, cerrors.Precondition(subsystem, "order id already exists")
	}
	for id, b := range s.Bids {
		if b.ListingID != p.ListingID {
			continue
		}
		clone := b
		if id == p.BidID {
			clone.Status = BidAccepted
		} else if clone.Status == BidOpen {
			clone.Status = BidRejected
		} else {
			continue
		}
		clone.UpdatedAt = now
		s.Bids[id] = clone
	}
	s.Orders[p.OrderID] = &Order{
		ID:          p.OrderID,
		ListingID:   p.ListingID,
		Buyer:       listing.Seller,
		Seller:      winning.Bidder,
		TotalAmount: winning.Amount,
		ContractID:  p.ContractID,
		Status:      OrderAccepted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	listingClone := listing.Clone()
	listingClone.Status = ListingSoldOut
	listingClone.OrderCount++
	listingClone.UpdatedAt = now
	s.Listings[p.ListingID] = listingClone
	return s, nil
}
