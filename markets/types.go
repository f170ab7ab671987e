// Package markets implements the three interlocking marketplaces (info,
// task, capability): listings, orders, bids, capability leases and usage
// records, and the market-level dispute path.
package markets

import ctypes "github.com/clawnet/clawnet/core/types"

// MarketType discriminates a listing's marketData shape.
type MarketType string

const (
	MarketInfo       MarketType = "info"
	MarketTask       MarketType = "task"
	MarketCapability MarketType = "capability"
)

// ListingStatus enumerates a listing's lifecycle.
type ListingStatus string

const (
	ListingActive   ListingStatus = "active"
	ListingPaused   ListingStatus = "paused"
	ListingSoldOut  ListingStatus = "sold_out"
	ListingExpired  ListingStatus = "expired"
	ListingRemoved  ListingStatus = "removed"
)

// BiddingMode enumerates a task listing's bid visibility.
type BiddingMode string

const (
	BiddingOpen    BiddingMode = "open"
	BiddingSealed  BiddingMode = "sealed"
	BiddingReverse BiddingMode = "reverse"
)

// InfoData is the marketData payload for an info listing.
type InfoData struct {
	ContentHash string `json:"contentHash"`
	Preview     string `json:"preview,omitempty"`
}

// TaskData is the marketData payload for a task listing.
type TaskData struct {
	Budget      ctypes.Amount `json:"budget"`
	BiddingMode BiddingMode   `json:"biddingMode"`
	Deadline    int64         `json:"deadline,omitempty"`
}

// CapabilityData is the marketData payload for a capability listing.
type CapabilityData struct {
	CapabilityName string        `json:"capabilityName"`
	PricePerUse    ctypes.Amount `json:"pricePerUse"`
	QuotaPerLease  int64         `json:"quotaPerLease,omitempty"`
}

// Listing is a published offer in one of the three marketplaces.
type Listing struct {
	ID          string         `json:"id"`
	Seller      string         `json:"seller"`
	MarketType  MarketType     `json:"marketType"`
	Title       string         `json:"title"`
	Info        *InfoData       `json:"info,omitempty"`
	Task        *TaskData       `json:"task,omitempty"`
	Capability  *CapabilityData `json:"capability,omitempty"`
	Status      ListingStatus  `json:"status"`
	ViewCount   int64          `json:"viewCount"`
	OrderCount  int64          `json:"orderCount"`
	CreatedAt   int64          `json:"createdAt"`
	UpdatedAt   int64          `json:"updatedAt"`
}

// Clone deep-copies a Listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Info != nil {
		info := *l.Info
		clone.Info = &info
	}
	if l.Task != nil {
		task := *l.Task
		clone.Task = &task
	}
	if l.Capability != nil {
		cap := *l.Capability
		clone.Capability = &cap
	}
	return &clone
}

// OrderStatus enumerates the order FSM's states.
type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderAccepted       OrderStatus = "accepted"
	OrderPaymentPending OrderStatus = "payment_pending"
	OrderPaid           OrderStatus = "paid"
	OrderInProgress     OrderStatus = "in_progress"
	OrderDelivered      OrderStatus = "delivered"
	OrderCompleted      OrderStatus = "completed"
	OrderCancelled      OrderStatus = "cancelled"
	OrderDisputed       OrderStatus = "disputed"
	OrderRefunded       OrderStatus = "refunded"
)

// orderTransitions is the allowed-transition table for the order FSM.
var orderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderPending:        {OrderAccepted: true, OrderCancelled: true},
	OrderAccepted:       {OrderPaymentPending: true, OrderCancelled: true, OrderDisputed: true},
	OrderPaymentPending: {OrderPaid: true, OrderCancelled: true, OrderDisputed: true},
	OrderPaid:           {OrderInProgress: true, OrderDisputed: true},
	OrderInProgress:     {OrderDelivered: true, OrderDisputed: true},
	OrderDelivered:      {OrderCompleted: true, OrderDisputed: true},
	OrderDisputed:       {OrderCompleted: true, OrderRefunded: true, OrderCancelled: true},
}

// TransitionAllowed reports whether the order FSM permits from -> to.
func TransitionAllowed(from, to OrderStatus) bool {
	return orderTransitions[from][to]
}

// Review is a one-time, post-completion rating attached by an order party.
type Review struct {
	Rating    int            `json:"rating"`
	SubScores map[string]int `json:"subScores,omitempty"`
	Comment   string         `json:"comment,omitempty"`
	RatedAt   int64          `json:"ratedAt"`
}

// Order is a buyer/seller transaction against a listing.
type Order struct {
	ID            string      `json:"id"`
	ListingID     string      `json:"listingId"`
	Buyer         string      `json:"buyer"`
	Seller        string      `json:"seller"`
	Quantity      int64       `json:"quantity,omitempty"`
	TotalAmount   ctypes.Amount `json:"totalAmount"`
	EscrowID      string      `json:"escrowId,omitempty"`
	ContractID    string      `json:"contractId,omitempty"`
	Status        OrderStatus `json:"status"`
	DeliveryRef   string      `json:"deliveryRef,omitempty"`
	BuyerReview   *Review     `json:"buyerReview,omitempty"`
	SellerReview  *Review     `json:"sellerReview,omitempty"`
	CreatedAt     int64       `json:"createdAt"`
	UpdatedAt     int64       `json:"updatedAt"`
}

// Clone deep-copies an Order.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.BuyerReview != nil {
		r := *o.BuyerReview
		clone.BuyerReview = &r
	}
	if o.SellerReview != nil {
		r := *o.SellerReview
		clone.SellerReview = &r
	}
	return &clone
}

// BidStatus enumerates a task bid's lifecycle.
type BidStatus string

const (
	BidOpen     BidStatus = "open"
	BidAccepted BidStatus = "accepted"
	BidRejected BidStatus = "rejected"
	BidWithdrawn BidStatus = "withdrawn"
)

// Bid is an offer against a task listing.
type Bid struct {
	ID        string        `json:"id"`
	ListingID string        `json:"listingId"`
	Bidder    string        `json:"bidder"`
	Amount    ctypes.Amount `json:"amount"`
	Note      string        `json:"note,omitempty"`
	Status    BidStatus     `json:"status"`
	CreatedAt int64         `json:"createdAt"`
	UpdatedAt int64         `json:"updatedAt"`
}

// Clone copies a Bid by value.
func (b Bid) Clone() Bid { return b }

// Lease is an ongoing capability-market relationship with a usage quota.
type Lease struct {
	ID            string        `json:"id"`
	ListingID     string        `json:"listingId"`
	Lessee        string        `json:"lessee"`
	Lessor        string        `json:"lessor"`
	QuotaTotal    int64         `json:"quotaTotal"`
	QuotaUsed     int64         `json:"quotaUsed"`
	TotalSpent    ctypes.Amount `json:"totalSpent"`
	Active        bool          `json:"active"`
	CreatedAt     int64         `json:"createdAt"`
	UpdatedAt     int64         `json:"updatedAt"`
}

// Clone copies a Lease by value.
func (l Lease) Clone() Lease { return l }

// UsageRecord is one billed invocation against a capability lease.
type UsageRecord struct {
	LeaseID   string        `json:"leaseId"`
	Cost      ctypes.Amount `json:"cost"`
	Quantity  int64         `json:"quantity"`
	RecordedAt int64        `json:"recordedAt"`
}

// PendingDisputeResolution records one party's proposed split from a
// market.dispute.resolve envelope, pending the other party submitting a
// matching one.
type PendingDisputeResolution struct {
	Proposer   string        `json:"proposer"`
	ToBuyer    ctypes.Amount `json:"toBuyer"`
	ToSeller   ctypes.Amount `json:"toSeller"`
	FinalOrder OrderStatus   `json:"finalStatus"`
	ProposedAt int64         `json:"proposedAt"`
}

// Dispute tracks a market-level dispute opened against an order.
type Dispute struct {
	OrderID   string `json:"orderId"`
	OpenedBy  string `json:"openedBy"`
	Reason    string `json:"reason,omitempty"`
	Resolved  bool   `json:"resolved"`
	// Pending holds the first party's proposed resolution until the other
	// party proposes a matching one.
	Pending   *PendingDisputeResolution `json:"pendingResolution,omitempty"`
	CreatedAt int64                     `json:"createdAt"`
	UpdatedAt int64                     `json:"updatedAt"`
}

// Clone copies a Dispute, deep-copying the pending resolution if set.
func (d Dispute) Clone() Dispute {
	if d.Pending != nil {
		pending := *d.Pending
		d.Pending = &pending
	}
	return d
}

// ListingResource returns the causal-chain resource key for a listing.
func ListingResource(id string) string { return "market.listing:" + id }

// OrderResource returns the causal-chain resource key for an order.
func OrderResource(id string) string { return "market.order:" + id }

// BidResource returns the causal-chain resource key for a bid, chained under
// its parent task's resource.
func BidResource(listingID, bidID string) string { return "market.bid:" + listingID + ":" + bidID }

// LeaseResource returns the causal-chain resource key for a lease.
func LeaseResource(id string) string { return "market.lease:" + id }
