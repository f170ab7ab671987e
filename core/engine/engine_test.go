package engine

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clawnet/clawnet/contracts"
	"github.com/clawnet/clawnet/core/state"
	ctypes "github.com/clawnet/clawnet/core/types"
	"github.com/clawnet/clawnet/crypto"
	"github.com/clawnet/clawnet/dao"
	"github.com/clawnet/clawnet/identity"
	"github.com/clawnet/clawnet/markets"
	"github.com/clawnet/clawnet/reputation"
	"github.com/clawnet/clawnet/wallet"
)

// newIssuer generates a fresh keypair and its bound DID, the identity every
// test envelope below is issued from.
func newIssuer(t *testing.T) (*crypto.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key, key.PubKey().DID()
}

// sealEnvelope fills nonce/resourcePrev/hash/sig and returns a ready-to-apply
// envelope.
func sealEnvelope(t *testing.T, key *crypto.PrivateKey, issuer, eventType string, nonce uint64, resourcePrev string, payload interface{}, ts int64) *ctypes.Envelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	env := &ctypes.Envelope{
		V:            ctypes.SchemaVersion,
		Type:         eventType,
		Issuer:       issuer,
		Ts:           ts,
		Nonce:        nonce,
		ResourcePrev: resourcePrev,
		Payload:      raw,
	}
	require.NoError(t, env.Sign(key))
	return env
}

// registerIssuer applies an identity.create envelope for a fresh DID and
// returns the signing key so subsequent envelopes from it can be sealed.
func registerIssuer(t *testing.T, s *state.Store) (*crypto.PrivateKey, string) {
	t.Helper()
	key, did := newIssuer(t)
	doc := identity.Document{
		DID:           did,
		AuthPublicKey: hex.EncodeToString(key.PubKey().Bytes()),
	}
	env := sealEnvelope(t, key, did, "identity.create", 1, "", identity.CreatePayload{Document: doc}, 1000)
	require.NoError(t, ValidateAndApply(context.Background(), s, env))
	return key, did
}

func TestValidateAndApplyIdentityCreate(t *testing.T) {
	s := state.New("claw-treasury")
	_, did := registerIssuer(t, s)

	snap := s.Snapshot()
	doc, ok := snap.Identities.Documents[did]
	require.True(t, ok)
	require.Equal(t, did, doc.DID)
}

func TestValidateAndApplyRejectsBadSignature(t *testing.T) {
	s := state.New("claw-treasury")
	key, did := registerIssuer(t, s)
	other, _ := crypto.GeneratePrivateKey()

	env := sealEnvelope(t, key, did, "wallet.transfer", 1, "", wallet.TransferPayload{
		From: did, To: "claw-someone-else", Amount: ctypes.NewAmount(10),
	}, 1001)
	// Tamper: re-sign with an unrelated key, leaving the hash (and therefore
	// the issuer binding) untouched.
	sigBytes := other.Sign([]byte(env.Hash))
	env.Sig = hex.EncodeToString(sigBytes)

	err := ValidateAndApply(context.Background(), s, env)
	require.Error(t, err)
}

func TestValidateAndApplyRejectsNonceOutOfOrder(t *testing.T) {
	s := state.New("claw-treasury")
	key, did := registerIssuer(t, s)

	// Give the issuer funds directly; wallet.transfer is not the funding
	// mechanism under test here.
	s.Wallet.Balances[did] = wallet.Balance{Available: ctypes.NewAmount(100)}

	// wallet.transfer's nonce family is independent of identity.create's, so
	// its counter also starts at 1; skipping straight to 2 must be rejected.
	env := sealEnvelope(t, key, did, "wallet.transfer", 2, "", wallet.TransferPayload{
		From: did, To: "claw-bob", Amount: ctypes.NewAmount(10),
	}, 1002)

	err := ValidateAndApply(context.Background(), s, env)
	require.Error(t, err)
}

func TestValidateAndApplyWalletTransfer(t *testing.T) {
	s := state.New("claw-treasury")
	key, did := registerIssuer(t, s)
	s.Wallet.Balances[did] = wallet.Balance{Available: ctypes.NewAmount(100)}

	env := sealEnvelope(t, key, did, "wallet.transfer", 1, "", wallet.TransferPayload{
		From: did, To: "claw-bob", Amount: ctypes.NewAmount(30), Fee: ctypes.NewAmount(1),
	}, 1002)
	require.NoError(t, ValidateAndApply(context.Background(), s, env))

	snap := s.Snapshot()
	require.Equal(t, "69", snap.Wallet.Balances[did].Available.String())
	require.Equal(t, "30", snap.Wallet.Balances["claw-bob"].Available.String())
	require.True(t, snap.Wallet.FeesBurned.Cmp(ctypes.NewAmount(1)) == 0)
}

func TestValidateAndApplyIsIdempotentOnReplay(t *testing.T) {
	s := state.New("claw-treasury")
	key, did := registerIssuer(t, s)
	s.Wallet.Balances[did] = wallet.Balance{Available: ctypes.NewAmount(100)}

	env := sealEnvelope(t, key, did, "wallet.transfer", 1, "", wallet.TransferPayload{
		From: did, To: "claw-bob", Amount: ctypes.NewAmount(10),
	}, 1003)
	require.NoError(t, ValidateAndApply(context.Background(), s, env))
	// Replaying the exact same envelope (same hash) must be a no-op, not a
	// second debit.
	require.NoError(t, ValidateAndApply(context.Background(), s, env))

	snap := s.Snapshot()
	require.Equal(t, "90", snap.Wallet.Balances[did].Available.String())
}

func TestValidateAndApplyRejectsResourcePrevMismatch(t *testing.T) {
	s := state.New("claw-treasury")
	key, did := registerIssuer(t, s)

	doc := identity.Document{
		DID:           did,
		AuthPublicKey: hex.EncodeToString(key.PubKey().Bytes()),
		UpdatedAt:     1000,
	}
	// identity.update with a resourcePrev that doesn't match the last
	// mutating hash for this DID (it was just created, so the chain has a
	// real previous hash, not "").
	env := sealEnvelope(t, key, did, "identity.update", 1, "", identity.UpdatePayload{
		Document: doc,
	}, 1005)
	err := ValidateAndApply(context.Background(), s, env)
	require.Error(t, err)
}

// TestValidateAndApplyMilestoneContractLifecycle exercises spec scenario 2
// end to end through the engine: draft, both-party signature, escrow
// funding, activation, milestone submission and approval, verifying the
// escrow release happens in the same dispatch step as the approval.
func TestValidateAndApplyMilestoneContractLifecycle(t *testing.T) {
	s := state.New("claw-treasury")
	clientKey, clientDID := registerIssuer(t, s)
	providerKey, providerDID := registerIssuer(t, s)
	s.Wallet.Balances[clientDID] = wallet.Balance{Available: ctypes.NewAmount(100)}

	createEnv := sealEnvelope(t, clientKey, clientDID, "contract.create", 1, "", contracts.CreatePayload{
		ID: "c1", Client: clientDID, Provider: providerDID,
		RequiredSigners: []string{clientDID, providerDID},
		TotalAmount:     ctypes.NewAmount(100),
		Milestones:      []contracts.Milestone{{ID: "m1", Amount: ctypes.NewAmount(100)}},
		EscrowRequired:  true,
	}, 2000)
	require.NoError(t, ValidateAndApply(context.Background(), s, createEnv))

	clientSignEnv := sealEnvelope(t, clientKey, clientDID, "contract.sign", 1, createEnv.Hash, contracts.SignPayload{ContractID: "c1"}, 2001)
	require.NoError(t, ValidateAndApply(context.Background(), s, clientSignEnv))

	providerSignEnv := sealEnvelope(t, providerKey, providerDID, "contract.sign", 1, clientSignEnv.Hash, contracts.SignPayload{ContractID: "c1"}, 2002)
	require.NoError(t, ValidateAndApply(context.Background(), s, providerSignEnv))

	escrowCreateEnv := sealEnvelope(t, clientKey, clientDID, "wallet.escrow.create", 1, "", wallet.EscrowCreatePayload{
		ID: "e1", Depositor: clientDID, Beneficiary: providerDID, Rule: wallet.ReleaseRule{Kind: wallet.ConditionManual},
	}, 2003)
	require.NoError(t, ValidateAndApply(context.Background(), s, escrowCreateEnv))

	escrowFundEnv := sealEnvelope(t, clientKey, clientDID, "wallet.escrow.fund", 2, escrowCreateEnv.Hash, wallet.EscrowFundPayload{
		EscrowID: "e1", Amount: ctypes.NewAmount(100),
	}, 2004)
	require.NoError(t, ValidateAndApply(context.Background(), s, escrowFundEnv))

	activateEnv := sealEnvelope(t, clientKey, clientDID, "contract.activate", 1, providerSignEnv.Hash, contracts.ActivatePayload{
		ContractID: "c1", EscrowID: "e1",
	}, 2005)
	require.NoError(t, ValidateAndApply(context.Background(), s, activateEnv))
	require.Equal(t, contracts.StatusActive, s.Contracts.Contracts["c1"].Status)

	submitEnv := sealEnvelope(t, providerKey, providerDID, "contract.milestone.submit", 1, "", contracts.MilestoneSubmitPayload{
		ContractID: "c1", MilestoneID: "m1",
	}, 2006)
	require.NoError(t, ValidateAndApply(context.Background(), s, submitEnv))

	approveEnv := sealEnvelope(t, clientKey, clientDID, "contract.milestone.approve", 1, submitEnv.Hash, contracts.MilestoneReviewPayload{
		ContractID: "c1", MilestoneID: "m1",
	}, 2007)
	require.NoError(t, ValidateAndApply(context.Background(), s, approveEnv))

	snap := s.Snapshot()
	require.Equal(t, contracts.StatusCompleted, snap.Contracts.Contracts["c1"].Status)
	require.Equal(t, int64(100), snap.Wallet.Balances[providerDID].Available.Int().Int64())
}

// TestValidateAndApplyTaskBidAcceptCreatesContractAndOrder exercises spec
// scenario 3 end to end: publish, two competing bids, accept one. The
// winning bid must spawn a contract and order atomically while the losing
// bid is rejected in the same dispatch step.
func TestValidateAndApplyTaskBidAcceptCreatesContractAndOrder(t *testing.T) {
	s := state.New("claw-treasury")
	sellerKey, sellerDID := registerIssuer(t, s)
	bidder1Key, bidder1DID := registerIssuer(t, s)
	bidder2Key, bidder2DID := registerIssuer(t, s)

	publishEnv := sealEnvelope(t, sellerKey, sellerDID, "market.listing.publish", 1, "", markets.ListingPublishPayload{
		ID: "l1", MarketType: markets.MarketTask, Title: "ship a feature",
		Task: &markets.TaskData{Budget: ctypes.NewAmount(100), BiddingMode: "open"},
	}, 3000)
	require.NoError(t, ValidateAndApply(context.Background(), s, publishEnv))

	bid1Env := sealEnvelope(t, bidder1Key, bidder1DID, "market.bid.place", 1, "", markets.BidPlacePayload{
		ID: "bid-1", ListingID: "l1", Amount: ctypes.NewAmount(80),
	}, 3001)
	require.NoError(t, ValidateAndApply(context.Background(), s, bid1Env))

	bid2Env := sealEnvelope(t, bidder2Key, bidder2DID, "market.bid.place", 1, "", markets.BidPlacePayload{
		ID: "bid-2", ListingID: "l1", Amount: ctypes.NewAmount(90),
	}, 3002)
	require.NoError(t, ValidateAndApply(context.Background(), s, bid2Env))

	acceptEnv := sealEnvelope(t, sellerKey, sellerDID, "market.task.bid.accept", 1, publishEnv.Hash, markets.TaskBidAcceptPayload{
		ListingID: "l1", BidID: "bid-1", ContractID: "contract-1", OrderID: "order-1",
	}, 3003)
	require.NoError(t, ValidateAndApply(context.Background(), s, acceptEnv))

	snap := s.Snapshot()
	require.Equal(t, markets.BidAccepted, snap.Markets.Bids["bid-1"].Status)
	require.Equal(t, markets.BidRejected, snap.Markets.Bids["bid-2"].Status)
	order, ok := snap.Markets.Orders["order-1"]
	require.True(t, ok)
	require.Equal(t, bidder1DID, order.Seller)
	contract, ok := snap.Contracts.Get("contract-1")
	require.True(t, ok)
	require.Equal(t, sellerDID, contract.Client)
	require.Equal(t, bidder1DID, contract.Provider)
}

// TestValidateAndApplyContractSettlementRequiresBothParties is an
// engine-dispatch regression test for the fix that stopped a single party
// from unilaterally draining a contract's escrow through
// contract.settlement.execute: one envelope from the client alone must not
// move any funds.
func TestValidateAndApplyContractSettlementRequiresBothParties(t *testing.T) {
	s := state.New("claw-treasury")
	clientKey, clientDID := registerIssuer(t, s)
	providerKey, providerDID := registerIssuer(t, s)
	s.Wallet.Balances[clientDID] = wallet.Balance{Available: ctypes.NewAmount(100)}

	createEnv := sealEnvelope(t, clientKey, clientDID, "contract.create", 1, "", contracts.CreatePayload{
		ID: "c1", Client: clientDID, Provider: providerDID,
		RequiredSigners: []string{clientDID, providerDID},
		TotalAmount:     ctypes.NewAmount(100),
		Milestones:      []contracts.Milestone{{ID: "m1", Amount: ctypes.NewAmount(100)}},
		EscrowRequired:  true,
	}, 4000)
	require.NoError(t, ValidateAndApply(context.Background(), s, createEnv))
	clientSignEnv := sealEnvelope(t, clientKey, clientDID, "contract.sign", 1, createEnv.Hash, contracts.SignPayload{ContractID: "c1"}, 4001)
	require.NoError(t, ValidateAndApply(context.Background(), s, clientSignEnv))
	providerSignEnv := sealEnvelope(t, providerKey, providerDID, "contract.sign", 1, clientSignEnv.Hash, contracts.SignPayload{ContractID: "c1"}, 4002)
	require.NoError(t, ValidateAndApply(context.Background(), s, providerSignEnv))

	escrowCreateEnv := sealEnvelope(t, clientKey, clientDID, "wallet.escrow.create", 1, "", wallet.EscrowCreatePayload{
		ID: "e1", Depositor: clientDID, Beneficiary: providerDID, Rule: wallet.ReleaseRule{Kind: wallet.ConditionManual},
	}, 4003)
	require.NoError(t, ValidateAndApply(context.Background(), s, escrowCreateEnv))
	escrowFundEnv := sealEnvelope(t, clientKey, clientDID, "wallet.escrow.fund", 2, escrowCreateEnv.Hash, wallet.EscrowFundPayload{
		EscrowID: "e1", Amount: ctypes.NewAmount(100),
	}, 4004)
	require.NoError(t, ValidateAndApply(context.Background(), s, escrowFundEnv))
	activateEnv := sealEnvelope(t, clientKey, clientDID, "contract.activate", 1, providerSignEnv.Hash, contracts.ActivatePayload{
		ContractID: "c1", EscrowID: "e1",
	}, 4005)
	require.NoError(t, ValidateAndApply(context.Background(), s, activateEnv))

	settlePayload := contracts.SettlementExecutePayload{ContractID: "c1", ToProvider: ctypes.NewAmount(100), ToClient: ctypes.NewAmount(0)}
	clientSettleEnv := sealEnvelope(t, clientKey, clientDID, "contract.settlement.execute", 1, activateEnv.Hash, settlePayload, 4006)
	require.NoError(t, ValidateAndApply(context.Background(), s, clientSettleEnv))

	midSnap := s.Snapshot()
	require.Equal(t, contracts.StatusActive, midSnap.Contracts.Contracts["c1"].Status, "a lone proposal must not complete the contract")
	require.True(t, midSnap.Wallet.Balances[providerDID].Available.IsZero(), "a lone proposal must not move escrow funds")

	providerSettleEnv := sealEnvelope(t, providerKey, providerDID, "contract.settlement.execute", 1, clientSettleEnv.Hash, settlePayload, 4007)
	require.NoError(t, ValidateAndApply(context.Background(), s, providerSettleEnv))

	finalSnap := s.Snapshot()
	require.Equal(t, contracts.StatusCompleted, finalSnap.Contracts.Contracts["c1"].Status)
	require.Equal(t, int64(100), finalSnap.Wallet.Balances[providerDID].Available.Int().Int64())
}

// TestValidateAndApplyVoteCastUsesDAOBasePower is an engine-dispatch
// regression test for the fix to DefaultVotingPowerResolver: cast power
// must come from dao.BasePower over the voter's locked governance balance
// and derived reputation score, not a raw read of available balance.
func TestValidateAndApplyVoteCastUsesDAOBasePower(t *testing.T) {
	s := state.New("claw-treasury")
	proposerKey, proposerDID := registerIssuer(t, s)
	voterKey, voterDID := registerIssuer(t, s)
	s.Wallet.Balances[voterDID] = wallet.Balance{Available: ctypes.NewAmount(100), LockedGovernance: ctypes.NewAmount(400)}

	recordPayload, err := json.Marshal(reputation.RecordPayload{
		Target: voterDID, Dimension: reputation.DimensionQuality, Score: 900, Reference: "order-x",
	})
	require.NoError(t, err)
	s.Reputation, err = reputation.ApplyRecord(s.Reputation, "someone-else", recordPayload, 5000, "rep-hash-1", func(string) bool { return true })
	require.NoError(t, err)

	createEnv := sealEnvelope(t, proposerKey, proposerDID, "dao.proposal.create", 1, "", dao.ProposalCreatePayload{
		ID: "p1", Type: dao.ProposalSignal, Title: "raise the fee cap",
	}, 0)
	require.NoError(t, ValidateAndApply(context.Background(), s, createEnv))

	advance1Env := sealEnvelope(t, proposerKey, proposerDID, "dao.proposal.advance", 2, createEnv.Hash, dao.ProposalAdvancePayload{ID: "p1"}, 24*60*60*1000)
	require.NoError(t, ValidateAndApply(context.Background(), s, advance1Env))
	advance2Env := sealEnvelope(t, proposerKey, proposerDID, "dao.proposal.advance", 3, advance1Env.Hash, dao.ProposalAdvancePayload{ID: "p1"}, 24*60*60*1000)
	require.NoError(t, ValidateAndApply(context.Background(), s, advance2Env))

	voteEnv := sealEnvelope(t, voterKey, voterDID, "dao.vote.cast", 1, advance2Env.Hash, dao.VoteCastPayload{
		ProposalID: "p1", Option: dao.VoteFor,
	}, 24*60*60*1000)
	require.NoError(t, ValidateAndApply(context.Background(), s, voteEnv))

	profile := reputation.Derive(s.Reputation, voterDID, 24*60*60*1000)
	expectedPower := dao.BasePower(dao.VoterInputs{Balance: 100, LockedTokens: 400, ReputationScore: profile.OverallScore})
	require.NotEqual(t, int64(100), expectedPower, "locked governance tokens and reputation must move power away from raw available balance")

	snap := s.Snapshot()
	require.Equal(t, expectedPower, snap.DAO.Proposals["p1"].Votes[voterDID].Power.Int().Int64())
}
