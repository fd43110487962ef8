package approval

import (
	"fmt"
	"strings"
)

// VoteCount returns how many times voterID appears across both vote lists.
// The engine records duplicates, so callers use it to detect "already voted".
func VoteCount(p *Poll, voterID string) int {
	if p == nil {
		return 0
	}
	return count(p.ApproverIDs, voterID) + count(p.DisapproverIDs, voterID)
}

// HasVoted reports the direction voterID has voted for, approvals first.
func HasVoted(p *Poll, voterID string) (Direction, bool) {
	if p == nil {
		return "", false
	}
	if count(p.ApproverIDs, voterID) > 0 {
		return DirectionApprove, true
	}
	if count(p.DisapproverIDs, voterID) > 0 {
		return DirectionDisapprove, true
	}
	return "", false
}

// RemoveVoter deletes every vote of voterID from the lists named by
// directions (both lists when none given) and returns the number removed.
// It edits p in place; use it inside Service.Update for live polls.
func RemoveVoter(p *Poll, voterID string, directions ...Direction) int {
	if p == nil {
		return 0
	}
	if len(directions) == 0 {
		directions = []Direction{DirectionApprove, DirectionDisapprove}
	}
	removed := 0
	for _, d := range directions {
		var n int
		switch d {
		case DirectionApprove:
			p.ApproverIDs, n = without(p.ApproverIDs, voterID)
		case DirectionDisapprove:
			p.DisapproverIDs, n = without(p.DisapproverIDs, voterID)
		}
		removed += n
	}
	return removed
}

// Mentions renders ids deduplicated in first-seen order, annotating repeats
// with their count, e.g. "voterA ×2, voterB". mention formats a single id;
// nil leaves ids as they are.
func Mentions(ids []string, mention func(id string) string) string {
	if len(ids) == 0 {
		return ""
	}
	if mention == nil {
		mention = func(id string) string { return id }
	}
	counts := make(map[string]int, len(ids))
	order := make([]string, 0, len(ids))
	for _, id := range ids {
		if counts[id] == 0 {
			order = append(order, id)
		}
		counts[id]++
	}
	parts := make([]string, 0, len(order))
	for _, id := range order {
		if n := counts[id]; n > 1 {
			parts = append(parts, fmt.Sprintf("%s ×%d", mention(id), n))
			continue
		}
		parts = append(parts, mention(id))
	}
	return strings.Join(parts, ", ")
}

// Tally renders the vote progress of p, e.g. "1/2 approve, 0/2 disapprove".
func Tally(p *Poll, defaults Defaults) string {
	approvalCount, disapprovalCount := Quorum(p, defaults)
	return fmt.Sprintf("%d/%d approve, %d/%d disapprove",
		len(p.ApproverIDs), approvalCount, len(p.DisapproverIDs), disapprovalCount)
}

func count(ids []string, id string) int {
	n := 0
	for _, candidate := range ids {
		if candidate == id {
			n++
		}
	}
	return n
}

func without(ids []string, id string) ([]string, int) {
	out := ids[:0]
	removed := 0
	for _, candidate := range ids {
		if candidate == id {
			removed++
			continue
		}
		out = append(out, candidate)
	}
	return out, removed
}
