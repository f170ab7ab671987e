package markets

import (
	"encoding/json"

	cerrors "github.com/clawnet/clawnet/core/errors"
	ctypes "github.com/clawnet/clawnet/core/types"
	"github.com/clawnet/clawnet/wallet"
)

// CapabilityLeasePayload is the body of a capability.lease envelope.
type CapabilityLeasePayload struct {
	ID         string `json:"id"`
	ListingID  string `json:"listingId"`
	QuotaTotal int64  `json:"quotaTotal"`
}

// ApplyCapabilityLease opens a new ongoing relationship against a
// capability listing. issuer is the lessee.
func ApplyCapabilityLease(s State, issuer string, payload []byte, now int64) (State, error) {
	var p CapabilityLeasePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	listing, ok := s.Listings[p.ListingID]
	if !ok || listing.MarketType != MarketCapability || listing.Capability == nil {
		return s, cerrors.Precondition(subsystem, "unknown capability listing")
	}
	if listing.Status != ListingActive {
		return s, cerrors.Precondition(subsystem, "capability listing is not active")
	}
	if _, exists := s.Leases[p.ID]; exists {
		return s, cerrors.Precondition(subsystem, "lease id already exists")
	}
	quota := p.QuotaTotal
	if quota <= 0 {
		quota = listing.Capability.QuotaPerLease
	}
	s.Leases[p.ID] = Lease{
		ID:         p.ID,
		ListingID:  p.ListingID,
		Lessee:     issuer,
		Lessor:     listing.Seller,
		QuotaTotal: quota,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return s, nil
}

// CapabilityUsagePayload is the body of a capability.usage envelope.
type CapabilityUsagePayload struct {
	LeaseID  string `json:"leaseId"`
	Quantity int64  `json:"quantity"`
}

// ApplyCapabilityUsage records one billed invocation against a lease,
// decrementing its quota and, in the same reducer step, emitting the
// pay-per-use wallet transfer from lessee to lessor. issuer must be the
// lessee. wstate is threaded through and returned updated.
func ApplyCapabilityUsage(s State, issuer string, payload []byte, now int64, wstate wallet.State) (State, wallet.State, error) {
	var p CapabilityUsagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, wstate, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	lease, ok := s.Leases[p.LeaseID]
	if !ok {
		return s, wstate, cerrors.Precondition(subsystem, "unknown lease")
	}
	if !lease.Active {
		return s, wstate, cerrors.Precondition(subsystem, "lease is not active")
	}
	if issuer != lease.Lessee {
		return s, wstate, cerrors.Precondition(subsystem, "only the lessee may record usage")
	}
	qty := p.Quantity
	if qty <= 0 {
		qty = 1
	}
	if lease.QuotaTotal > 0 && lease.QuotaUsed+qty > lease.QuotaTotal {
		return s, wstate, cerrors.Precondition(subsystem, "usage exceeds remaining quota")
	}
	listing, ok := s.Listings[lease.ListingID]
	if !ok || listing.Capability == nil {
		return s, wstate, cerrors.Precondition(subsystem, "lease references an unknown capability listing")
	}
	cost := ctypes.NewAmount(0)
	for i := int64(0); i < qty; i++ {
		cost = cost.Add(listing.Capability.PricePerUse)
	}
	if cost.Sign() > 0 {
		transferPayload, err := json.Marshal(wallet.TransferPayload{
			From:   lease.Lessee,
			To:     lease.Lessor,
			Amount: cost,
			Fee:    ctypes.NewAmount(0),
		})
		if err != nil {
			return s, wstate, cerrors.Wrap(cerrors.KindPreconditionFailed, "marshal usage transfer", err)
		}
		var terr error
		wstate, terr = wallet.ApplyTransfer(wstate, lease.Lessee, transferPayload)
		if terr != nil {
			return s, wstate, terr
		}
	}
	lease.QuotaUsed += qty
	lease.TotalSpent = lease.TotalSpent.Add(cost)
	lease.UpdatedAt = now
	if lease.QuotaTotal > 0 && lease.QuotaUsed >= lease.QuotaTotal {
		lease.Active = false
	}
	s.Leases[p.LeaseID] = lease
	return s, wstate, nil
}
