package markets

import (
	"encoding/json"

	cerrors "github.com/clawnet/clawnet/core/errors"
	ctypes "github.com/clawnet/clawnet/core/types"
	"github.com/clawnet/clawnet/wallet"
)

// DisputeOpenPayload is the body of a market.dispute.open envelope.
type DisputeOpenPayload struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason,omitempty"`
}

// ApplyDisputeOpen freezes an order's linked escrow pending resolution.
// issuer must be the buyer or seller on the order.
func ApplyDisputeOpen(s State, issuer string, payload []byte, now int64, wstate wallet.State) (State, wallet.State, error) {
	var p DisputeOpenPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, wstate, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	o, ok := s.Orders[p.OrderID]
	if !ok {
		return s, wstate, cerrors.Precondition(subsystem, "unknown order")
	}
	if issuer != o.Buyer && issuer != o.Seller {
		return s, wstate, cerrors.Precondition(subsystem, "only buyer or seller may open a dispute")
	}
	if _, exists := s.Disputes[p.OrderID]; exists {
		return s, wstate, cerrors.Precondition(subsystem, "dispute already open for this order")
	}
	if !TransitionAllowed(o.Status, OrderDisputed) {
		return s, wstate, cerrors.Precondition(subsystem, "order is not eligible for dispute")
	}
	var err error
	if o.EscrowID != "" {
		wstate, err = wallet.OpenDispute(wstate, o.EscrowID, now)
		if err != nil {
			return s, wstate, err
		}
	}
	orderClone := o.Clone()
	orderClone.Status = OrderDisputed
	orderClone.UpdatedAt = now
	s.Orders[p.OrderID] = orderClone
	s.Disputes[p.OrderID] = Dispute{OrderID: p.OrderID, OpenedBy: issuer, Reason: p.Reason, CreatedAt: now, UpdatedAt: now}
	return s, wstate, nil
}

// DisputeResolvePayload is the body of a market.dispute.resolve envelope: an
// accepted settlement proposal splitting the frozen escrow.
type DisputeResolvePayload struct {
	OrderID    string        `json:"orderId"`
	ToBuyer    ctypes.Amount `json:"toBuyer"`
	ToSeller   ctypes.Amount `json:"toSeller"`
	FinalOrder OrderStatus   `json:"finalStatus"`
}

// ApplyDisputeResolve records issuer's proposed split and final status. If
// the dispute already has a matching proposal pending from the other party
// (buyer and seller, whichever issuer isn't), the escrow drains per the
// agreed split, using the real issuer of this second envelope as the
// wallet-layer authority, and the order moves to its final status. A lone
// proposal from one party only records the pending proposal; no funds move.
func ApplyDisputeResolve(s State, issuer string, payload []byte, now int64, wstate wallet.State) (State, wallet.State, error) {
	var p DisputeResolvePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, wstate, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	o, ok := s.Orders[p.OrderID]
	if !ok {
		return s, wstate, cerrors.Precondition(subsystem, "unknown order")
	}
	if issuer != o.Buyer && issuer != o.Seller {
		return s, wstate, cerrors.Precondition(subsystem, "only buyer or seller may resolve this dispute")
	}
	dispute, ok := s.Disputes[p.OrderID]
	if !ok || dispute.Resolved {
		return s, wstate, cerrors.Precondition(subsystem, "no open dispute for this order")
	}
	if p.FinalOrder != OrderCompleted && p.FinalOrder != OrderRefunded {
		return s, wstate, cerrors.Precondition(subsystem, "final status must be completed or refunded")
	}

	pending := dispute.Pending
	agreed := pending != nil && pending.Proposer != issuer && pending.FinalOrder == p.FinalOrder &&
		pending.ToBuyer.Cmp(p.ToBuyer) == 0 && pending.ToSeller.Cmp(p.ToSeller) == 0
	if !agreed {
		disputeClone := dispute.Clone()
		disputeClone.Pending = &PendingDisputeResolution{
			Proposer: issuer, ToBuyer: p.ToBuyer, ToSeller: p.ToSeller, FinalOrder: p.FinalOrder, ProposedAt: now,
		}
		disputeClone.UpdatedAt = now
		s.Disputes[p.OrderID] = disputeClone
		return s, wstate, nil
	}

	var err error
	if o.EscrowID != "" {
		if p.ToSeller.Sign() > 0 {
			releasePayload, merr := json.Marshal(wallet.EscrowReleasePayload{EscrowID: o.EscrowID, Amount: p.ToSeller})
			if merr != nil {
				return s, wstate, cerrors.Wrap(cerrors.KindPreconditionFailed, "marshal escrow release", merr)
			}
			wstate, err = wallet.ApplyEscrowRelease(wstate, issuer, releasePayload, now, nil)
			if err != nil {
				return s, wstate, err
			}
		}
		if p.ToBuyer.Sign() > 0 {
			refundPayload, merr := json.Marshal(wallet.EscrowRefundPayload{EscrowID: o.EscrowID, Amount: p.ToBuyer})
			if merr != nil {
				return s, wstate, cerrors.Wrap(cerrors.KindPreconditionFailed, "marshal escrow refund", merr)
			}
			wstate, err = wallet.ApplyEscrowRefund(wstate, issuer, refundPayload, now)
			if err != nil {
				return s, wstate, err
			}
		}
	}
	orderClone := o.Clone()
	orderClone.Status = p.FinalOrder
	orderClone.UpdatedAt = now
	s.Orders[p.OrderID] = orderClone
	disputeClone := dispute.Clone()
	disputeClone.Pending = nil
	disputeClone.Resolved = true
	disputeClone.UpdatedAt = now
	s.Disputes[p.OrderID] = disputeClone
	return s, wstate, nil
}
