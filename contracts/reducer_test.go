package contracts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	ctypes "github.com/clawnet/clawnet/core/types"
	"github.com/clawnet/clawnet/wallet"
)

func TestApplyCreateRejectsMilestoneSumExceedingTotal(t *testing.T) {
	payload, err := json.Marshal(CreatePayload{
		ID: "c1", Client: "client", Provider: "provider", RequiredSigners: []string{"client", "provider"},
		TotalAmount: ctypes.NewAmount(100),
		Milestones:  []Milestone{{ID: "m1", Amount: ctypes.NewAmount(60)}, {ID: "m2", Amount: ctypes.NewAmount(60)}},
	})
	require.NoError(t, err)
	_, err = ApplyCreate(NewState(), "client", payload, 1000)
	require.Error(t, err)
}

func TestApplyCreateRejectsUnnamedParty(t *testing.T) {
	payload, err := json.Marshal(CreatePayload{ID: "c1", Client: "client", Provider: "provider", TotalAmount: ctypes.NewAmount(100)})
	require.NoError(t, err)
	_, err = ApplyCreate(NewState(), "stranger", payload, 1000)
	require.Error(t, err)
}

func draftContract(t *testing.T, escrowRequired bool) State {
	t.Helper()
	payload, err := json.Marshal(CreatePayload{
		ID: "c1", Client: "client", Provider: "provider", RequiredSigners: []string{"client", "provider"},
		TotalAmount:    ctypes.NewAmount(100),
		Milestones:     []Milestone{{ID: "m1", Amount: ctypes.NewAmount(100)}},
		EscrowRequired: escrowRequired,
	})
	require.NoError(t, err)
	s, err := ApplyCreate(NewState(), "client", payload, 1000)
	require.NoError(t, err)
	return s
}

func signBothParties(t *testing.T, s State) State {
	t.Helper()
	for _, party := range []string{"client", "provider"} {
		payload, err := json.Marshal(SignPayload{ContractID: "c1"})
		require.NoError(t, err)
		var err2 error
		s, err2 = ApplySign(s, party, payload, 1000)
		require.NoError(t, err2)
	}
	return s
}

func TestApplySignAdvancesToPendingFundingOnceAllSigned(t *testing.T) {
	s := draftContract(t, false)
	payload, err := json.Marshal(SignPayload{ContractID: "c1"})
	require.NoError(t, err)

	s, err = ApplySign(s, "client", payload, 1000)
	require.NoError(t, err)
	require.Equal(t, StatusPendingSignature, s.Contracts["c1"].Status)

	s, err = ApplySign(s, "provider", payload, 1001)
	require.NoError(t, err)
	require.Equal(t, StatusPendingFunding, s.Contracts["c1"].Status)
}

func TestApplySignRejectsNonRequiredSigner(t *testing.T) {
	s := draftContract(t, false)
	payload, err := json.Marshal(SignPayload{ContractID: "c1"})
	require.NoError(t, err)
	_, err = ApplySign(s, "stranger", payload, 1000)
	require.Error(t, err)
}

func fundedContractEscrow(t *testing.T, s State) (State, wallet.State) {
	t.Helper()
	s = signBothParties(t, s)

	wstate := wallet.NewState()
	wstate.Balances["client"] = wallet.Balance{Available: ctypes.NewAmount(100)}
	createPayload, err := json.Marshal(wallet.EscrowCreatePayload{ID: "escrow-1", Depositor: "client", Beneficiary: "provider", Rule: wallet.ReleaseRule{Kind: wallet.ConditionManual}})
	require.NoError(t, err)
	wstate, err = wallet.ApplyEscrowCreate(wstate, "client", createPayload, 1000)
	require.NoError(t, err)
	fundPayload, err := json.Marshal(wallet.EscrowFundPayload{EscrowID: "escrow-1", Amount: ctypes.NewAmount(100)})
	require.NoError(t, err)
	wstate, err = wallet.ApplyEscrowFund(wstate, "client", fundPayload, 1000)
	require.NoError(t, err)
	return s, wstate
}

func TestApplyActivateRequiresMatchingFundedEscrow(t *testing.T) {
	s := draftContract(t, true)
	s, wstate := fundedContractEscrow(t, s)

	payload, err := json.Marshal(ActivatePayload{ContractID: "c1", EscrowID: "escrow-1"})
	require.NoError(t, err)
	s, err = ApplyActivate(s, "client", payload, 2000, wstate)
	require.NoError(t, err)
	require.Equal(t, StatusActive, s.Contracts["c1"].Status)
}

func TestApplyActivateRejectsUnderfundedEscrow(t *testing.T) {
	s := draftContract(t, true)
	s = signBothParties(t, s)

	wstate := wallet.NewState()
	wstate.Balances["client"] = wallet.Balance{Available: ctypes.NewAmount(100)}
	createPayload, err := json.Marshal(wallet.EscrowCreatePayload{ID: "escrow-1", Depositor: "client", Beneficiary: "provider", Rule: wallet.ReleaseRule{Kind: wallet.ConditionManual}})
	require.NoError(t, err)
	wstate, err = wallet.ApplyEscrowCreate(wstate, "client", createPayload, 1000)
	require.NoError(t, err)
	fundPayload, err := json.Marshal(wallet.EscrowFundPayload{EscrowID: "escrow-1", Amount: ctypes.NewAmount(50)})
	require.NoError(t, err)
	wstate, err = wallet.ApplyEscrowFund(wstate, "client", fundPayload, 1000)
	require.NoError(t, err)

	payload, err := json.Marshal(ActivatePayload{ContractID: "c1", EscrowID: "escrow-1"})
	require.NoError(t, err)
	_, err = ApplyActivate(s, "client", payload, 2000, wstate)
	require.Error(t, err)
}

func activeContract(t *testing.T) (State, wallet.State) {
	t.Helper()
	s := draftContract(t, true)
	s, wstate := fundedContractEscrow(t, s)
	payload, err := json.Marshal(ActivatePayload{ContractID: "c1", EscrowID: "escrow-1"})
	require.NoError(t, err)
	s, err = ApplyActivate(s, "client", payload, 2000, wstate)
	require.NoError(t, err)
	return s, wstate
}

func TestApplyMilestoneSubmitRequiresProvider(t *testing.T) {
	s, _ := activeContract(t)
	payload, err := json.Marshal(MilestoneSubmitPayload{ContractID: "c1", MilestoneID: "m1"})
	require.NoError(t, err)
	_, err = ApplyMilestoneSubmit(s, "client", payload, 3000)
	require.Error(t, err)
}

func TestApplyMilestoneApproveReleasesEscrowAndCompletesContract(t *testing.T) {
	s, wstate := activeContract(t)
	submitPayload, err := json.Marshal(MilestoneSubmitPayload{ContractID: "c1", MilestoneID: "m1"})
	require.NoError(t, err)
	s, err = ApplyMilestoneSubmit(s, "provider", submitPayload, 3000)
	require.NoError(t, err)

	reviewPayload, err := json.Marshal(MilestoneReviewPayload{ContractID: "c1", MilestoneID: "m1"})
	require.NoError(t, err)
	s, wstate, err = ApplyMilestoneApprove(s, "client", reviewPayload, 3001, wstate)
	require.NoError(t, err)

	require.Equal(t, StatusCompleted, s.Contracts["c1"].Status)
	require.Equal(t, MilestoneApproved, s.Contracts["c1"].Milestones[0].Status)
	require.Equal(t, int64(100), wstate.BalanceOf("provider").Available.Int().Int64())
}

func TestApplyMilestoneApproveRejectsNonClient(t *testing.T) {
	s, wstate := activeContract(t)
	submitPayload, err := json.Marshal(MilestoneSubmitPayload{ContractID: "c1", MilestoneID: "m1"})
	require.NoError(t, err)
	s, err = ApplyMilestoneSubmit(s, "provider", submitPayload, 3000)
	require.NoError(t, err)

	reviewPayload, err := json.Marshal(MilestoneReviewPayload{ContractID: "c1", MilestoneID: "m1"})
	require.NoError(t, err)
	_, _, err = ApplyMilestoneApprove(s, "provider", reviewPayload, 3001, wstate)
	require.Error(t, err)
}

// TestApplySettlementExecuteRequiresBothParties regression-tests the fix for
// a single party unilaterally draining escrow through contract settlement:
// one envelope from the client alone must only record a pending proposal.
func TestApplySettlementExecuteRequiresBothParties(t *testing.T) {
	s, wstate := activeContract(t)
	payload, err := json.Marshal(SettlementExecutePayload{ContractID: "c1", ToProvider: ctypes.NewAmount(100), ToClient: ctypes.NewAmount(0)})
	require.NoError(t, err)

	s, _, err = ApplySettlementExecute(s, "client", payload, 4000, wstate)
	require.NoError(t, err)
	require.NotNil(t, s.Contracts["c1"].PendingSettlement)
	require.Equal(t, StatusActive, s.Contracts["c1"].Status)
}

func TestApplySettlementExecuteExecutesOnMatchingSecondProposal(t *testing.T) {
	s, wstate := activeContract(t)
	payload, err := json.Marshal(SettlementExecutePayload{ContractID: "c1", ToProvider: ctypes.NewAmount(100), ToClient: ctypes.NewAmount(0)})
	require.NoError(t, err)

	s, wstate, err = ApplySettlementExecute(s, "client", payload, 4000, wstate)
	require.NoError(t, err)
	s, wstate, err = ApplySettlementExecute(s, "provider", payload, 4001, wstate)
	require.NoError(t, err)

	require.Nil(t, s.Contracts["c1"].PendingSettlement)
	require.Equal(t, StatusCompleted, s.Contracts["c1"].Status)
	require.Equal(t, int64(100), wstate.BalanceOf("provider").Available.Int().Int64())
}

func TestApplySettlementExecuteIgnoresMismatchedSecondProposal(t *testing.T) {
	s, wstate := activeContract(t)
	firstPayload, err := json.Marshal(SettlementExecutePayload{ContractID: "c1", ToProvider: ctypes.NewAmount(100), ToClient: ctypes.NewAmount(0)})
	require.NoError(t, err)
	s, wstate, err = ApplySettlementExecute(s, "client", firstPayload, 4000, wstate)
	require.NoError(t, err)

	mismatchedPayload, err := json.Marshal(SettlementExecutePayload{ContractID: "c1", ToProvider: ctypes.NewAmount(40), ToClient: ctypes.NewAmount(60)})
	require.NoError(t, err)
	s, _, err = ApplySettlementExecute(s, "provider", mismatchedPayload, 4001, wstate)
	require.NoError(t, err)

	require.Equal(t, StatusActive, s.Contracts["c1"].Status)
	require.Equal(t, "provider", s.Contracts["c1"].PendingSettlement.Proposer)
}

func TestApplyDisputeResolveRequiresDesignatedArbiter(t *testing.T) {
	s := draftContract(t, true)
	s, wstate := fundedContractEscrow(t, s)
	s.Contracts["c1"].ArbiterDID = "arbiter"
	activatePayload, err := json.Marshal(ActivatePayload{ContractID: "c1", EscrowID: "escrow-1"})
	require.NoError(t, err)
	s, err = ApplyActivate(s, "client", activatePayload, 2000, wstate)
	require.NoError(t, err)

	disputePayload, err := json.Marshal(DisputeOpenPayload{ContractID: "c1"})
	require.NoError(t, err)
	s, wstate, err = ApplyDisputeOpen(s, "client", disputePayload, 3000, wstate)
	require.NoError(t, err)

	resolvePayload, err := json.Marshal(DisputeResolvePayload{ContractID: "c1", ToProvider: ctypes.NewAmount(100), ToClient: ctypes.NewAmount(0)})
	require.NoError(t, err)
	_, _, err = ApplyDisputeResolve(s, "client", resolvePayload, 4000, wstate)
	require.Error(t, err)

	s, wstate, err = ApplyDisputeResolve(s, "arbiter", resolvePayload, 4000, wstate)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, s.Contracts["c1"].Status)
	require.Equal(t, int64(100), wstate.BalanceOf("provider").Available.Int().Int64())
}

func TestApplyTerminateCancelsUnsignedDraft(t *testing.T) {
	s := draftContract(t, false)
	payload, err := json.Marshal(TerminatePayload{ContractID: "c1"})
	require.NoError(t, err)
	s, err = ApplyTerminate(s, "client", payload, 2000)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, s.Contracts["c1"].Status)
}

func TestApplyTerminateRejectsAlreadyFinalContract(t *testing.T) {
	s := draftContract(t, false)
	payload, err := json.Marshal(TerminatePayload{ContractID: "c1"})
	require.NoError(t, err)
	s, err = ApplyTerminate(s, "client", payload, 2000)
	require.NoError(t, err)
	_, err = ApplyTerminate(s, "client", payload, 2001)
	require.Error(t, err)
}
