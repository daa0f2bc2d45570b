// Copyright 2026 Conclave Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package consensus_test

import (
	"testing"

	"github.com/conclave-labs/conclave/consensus"
)

func TestEvaluate(t *testing.T) {
	testDefs := []struct {
		name     string
		votes    map[string]consensus.Decision
		total    int
		required int
		expected consensus.Outcome
	}{
		{
			name:     "no votes",
			total:    3,
			required: 2,
			votes:    map[string]consensus.Decision{},
			expected: consensus.OutcomePending,
		},
		{
			name:     "one approval of two required",
			total:    3,
			required: 2,
			votes: map[string]consensus.Decision{
				"u1": consensus.DecisionApprove,
			},
			expected: consensus.OutcomePending,
		},
		{
			name:     "quorum reached",
			total:    3,
			required: 2,
			votes: map[string]consensus.Decision{
				"u1": consensus.DecisionApprove,
				"u2": consensus.DecisionApprove,
			},
			expected: consensus.OutcomeApproved,
		},
		{
			name:     "quorum reached with dissent",
			total:    3,
			required: 2,
			votes: map[string]consensus.Decision{
				"u1": consensus.DecisionApprove,
				"u2": consensus.DecisionReject,
				"u3": consensus.DecisionApprove,
			},
			expected: consensus.OutcomeApproved,
		},
		{
			name:     "single rejection not yet fatal",
			total:    3,
			required: 2,
			votes: map[string]consensus.Decision{
				"u1": consensus.DecisionReject,
			},
			expected: consensus.OutcomePending,
		},
		{
			name:     "quorum unreachable",
			total:    3,
			required: 2,
			votes: map[string]consensus.Decision{
				"u1": consensus.DecisionReject,
				"u2": consensus.DecisionReject,
			},
			expected: consensus.OutcomeRejected,
		},
		{
			// With 2 approvals, 2 rejections, and 1 signer left, exactly 3
			// approvals remain achievable, which meets the requirement, so
			// the session must stay open
			name:     "3of5 split still exactly reachable",
			total:    5,
			required: 3,
			votes: map[string]consensus.Decision{
				"u1": consensus.DecisionApprove,
				"u2": consensus.DecisionApprove,
				"u3": consensus.DecisionReject,
				"u4": consensus.DecisionReject,
			},
			expected: consensus.OutcomePending,
		},
		{
			name:     "3of5 third rejection closes it",
			total:    5,
			required: 3,
			votes: map[string]consensus.Decision{
				"u1": consensus.DecisionApprove,
				"u2": consensus.DecisionApprove,
				"u3": consensus.DecisionReject,
				"u4": consensus.DecisionReject,
				"u5": consensus.DecisionReject,
			},
			expected: consensus.OutcomeRejected,
		},
		{
			name:     "4of5 single rejection undecided",
			total:    5,
			required: 4,
			votes: map[string]consensus.Decision{
				"u1": consensus.DecisionReject,
			},
			expected: consensus.OutcomePending,
		},
		{
			name:     "4of5 two rejections unreachable",
			total:    5,
			required: 4,
			votes: map[string]consensus.Decision{
				"u1": consensus.DecisionReject,
				"u2": consensus.DecisionReject,
			},
			expected: consensus.OutcomeRejected,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			outcome := consensus.Evaluate(
				testDef.total,
				testDef.required,
				testDef.votes,
			)
			if outcome != testDef.expected {
				t.Fatalf(
					"did not get expected outcome: got %s, wanted %s",
					outcome,
					testDef.expected,
				)
			}
		})
	}
}

func TestEvaluateOrderIndependence(t *testing.T) {
	// Any two approvals out of three must approve, regardless of which two
	signers := []string{"u1", "u2", "u3"}
	for i := range signers {
		for j := range signers {
			if i == j {
				continue
			}
			votes := map[string]consensus.Decision{
				signers[i]: consensus.DecisionApprove,
				signers[j]: consensus.DecisionApprove,
			}
			if outcome := consensus.Evaluate(3, 2, votes); outcome != consensus.OutcomeApproved {
				t.Fatalf(
					"votes from %s and %s: got %s, wanted APPROVED",
					signers[i],
					signers[j],
					outcome,
				)
			}
		}
	}
}

func TestCountRevoteDoesNotDoubleTally(t *testing.T) {
	votes := map[string]consensus.Decision{}
	votes["u1"] = consensus.DecisionApprove
	votes["u1"] = consensus.DecisionReject
	tally := consensus.Count(votes)
	if tally.Approve != 0 || tally.Reject != 1 {
		t.Fatalf(
			"unexpected tally after re-vote: approve=%d, reject=%d",
			tally.Approve,
			tally.Reject,
		)
	}
}

func TestParseDecision(t *testing.T) {
	if _, err := consensus.ParseDecision("abstain"); err == nil {
		t.Fatalf("expected error for unknown decision")
	}
	d, err := consensus.ParseDecision("approve")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if d != consensus.DecisionApprove {
		t.Fatalf("did not get expected decision: %s", d)
	}
}
