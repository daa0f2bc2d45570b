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

// Package consensus implements the quorum decision logic for approval
// sessions. It is pure computation: no I/O, no storage access, and it never
// returns an error. Callers are expected to pass an already-validated
// configuration (required <= total, total > 0).
package consensus

import "fmt"

// Decision is a single signer's vote on a session.
type Decision int

const (
	DecisionApprove Decision = iota
	DecisionReject
)

func (d Decision) String() string {
	switch d {
	case DecisionApprove:
		return "approve"
	case DecisionReject:
		return "reject"
	default:
		return fmt.Sprintf("unknown (%d)", int(d))
	}
}

// ParseDecision converts the wire representation of a vote into a Decision
func ParseDecision(s string) (Decision, error) {
	switch s {
	case "approve":
		return DecisionApprove, nil
	case "reject":
		return DecisionReject, nil
	default:
		return 0, fmt.Errorf("unknown decision: %q", s)
	}
}

// Outcome is the result of evaluating the votes cast so far against the
// configured quorum
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeApproved
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "PENDING"
	case OutcomeApproved:
		return "APPROVED"
	case OutcomeRejected:
		return "REJECTED"
	default:
		return fmt.Sprintf("unknown (%d)", int(o))
	}
}

// Terminal returns true if the outcome ends the session
func (o Outcome) Terminal() bool {
	return o == OutcomeApproved || o == OutcomeRejected
}

// Tally holds the per-decision counts for a vote set
type Tally struct {
	Approve int
	Reject  int
}

// Count tallies the votes cast so far. Absence from the map means the signer
// has not voted. Each signer contributes at most one vote, so re-votes never
// double count.
func Count(votes map[string]Decision) Tally {
	var t Tally
	for _, d := range votes {
		switch d {
		case DecisionApprove:
			t.Approve++
		case DecisionReject:
			t.Reject++
		}
	}
	return t
}

// Evaluate determines whether the session has reached quorum, can no longer
// reach quorum, or is still undecided.
//
// The session is approved as soon as requiredApprovals approvals have been
// cast. It is rejected as soon as enough rejections have accumulated that the
// remaining un-voted signers could no longer reach requiredApprovals, i.e.
// when totalSigners - rejectCount < requiredApprovals. This resolves a failed
// quorum promptly instead of waiting for the session window to lapse.
func Evaluate(
	totalSigners int,
	requiredApprovals int,
	votes map[string]Decision,
) Outcome {
	tally := Count(votes)
	if tally.Approve >= requiredApprovals {
		return OutcomeApproved
	}
	// Maximum approvals still achievable if every un-voted signer approves
	if totalSigners-tally.Reject < requiredApprovals {
		return OutcomeRejected
	}
	return OutcomePending
}
