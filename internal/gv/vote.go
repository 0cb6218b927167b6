package gv

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// VoteChoice is a user's active vote on a post.
type VoteChoice string

const (
	VoteNone VoteChoice = ""
	VoteUp   VoteChoice = "upvote"
	VoteDown VoteChoice = "downvote"
)

// ParseVoteChoice accepts "up"/"upvote", "down"/"downvote" and "none".
func ParseVoteChoice(s string) (VoteChoice, error) {
	switch s {
	case "up", "upvote":
		return VoteUp, nil
	case "down", "downvote":
		return VoteDown, nil
	case "", "none":
		return VoteNone, nil
	default:
		return VoteNone, fmt.Errorf("unknown vote %q", s)
	}
}

func (c VoteChoice) String() string {
	if c == VoteNone {
		return "none"
	}
	return string(c)
}

// MarshalJSON encodes VoteNone as null.
func (c VoteChoice) MarshalJSON() ([]byte, error) {
	if c == VoteNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

func (c *VoteChoice) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*c = VoteNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseVoteChoice(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// VoteTally is the authoritative count pair returned by the vote endpoints.
type VoteTally struct {
	Upvotes   int
	Downvotes int
}

// VoteState is the vote state of one post as seen by the signed-in user.
type VoteState struct {
	Upvotes   int
	Downvotes int
	UserVote  VoteChoice
}

func (v VoteState) String() string {
	return fmt.Sprintf("(%d,%d,%s)", v.Upvotes, v.Downvotes, v.UserVote)
}

// applyChoice moves v from its current choice to to, decrementing the old
// tally and incrementing the new one in a single step.
func (v VoteState) applyChoice(to VoteChoice) VoteState {
	switch v.UserVote {
	case VoteUp:
		if v.Upvotes > 0 {
			v.Upvotes--
		}
	case VoteDown:
		if v.Downvotes > 0 {
			v.Downvotes--
		}
	}
	switch to {
	case VoteUp:
		v.Upvotes++
	case VoteDown:
		v.Downvotes++
	}
	v.UserVote = to
	return v
}

// confirmed returns the state after the server confirmed choice with tally.
func confirmed(choice VoteChoice, tally VoteTally) VoteState {
	return VoteState{Upvotes: tally.Upvotes, Downvotes: tally.Downvotes, UserVote: choice}
}

// VotePhase is the state of the per-post vote state machine.
type VotePhase int

const (
	PhaseNone VotePhase = iota
	PhaseUpvoted
	PhaseDownvoted
	PhasePending
)

func (p VotePhase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseUpvoted:
		return "upvoted"
	case PhaseDownvoted:
		return "downvoted"
	case PhasePending:
		return "pending"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func phaseOf(c VoteChoice) VotePhase {
	switch c {
	case VoteUp:
		return PhaseUpvoted
	case VoteDown:
		return PhaseDownvoted
	default:
		return PhaseNone
	}
}

// voteTransitions lists the settled phases each intent may leave from.
// A missing entry means the intent is already satisfied and needs no call.
var voteTransitions = map[VotePhase]map[VoteChoice]bool{
	PhaseNone:      {VoteUp: true, VoteDown: true},
	PhaseUpvoted:   {VoteDown: true, VoteNone: true},
	PhaseDownvoted: {VoteUp: true, VoteNone: true},
}

// needsTransition reports whether moving from phase to intent requires a server call.
func needsTransition(from VotePhase, intent VoteChoice) bool {
	return voteTransitions[from][intent]
}
