// Package overlap computes common-availability reports for a plan.
//
// Aggregation is recomputed from the latest stored sets on every call. That
// keeps the report a pure function of current state, so submission order,
// retries, and concurrent participants cannot skew it.
package overlap

import (
	"sort"

	"github.com/huddlehq/huddle/internal/services/scheduling/domain/availability"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/slot"
)

// Classification labels how widely shared a slot is.
type Classification string

const (
	// ClassificationPerfect means every responded participant is free.
	ClassificationPerfect Classification = "perfect"
	// ClassificationNear means all but the near-shortfall are free.
	ClassificationNear Classification = "near"
	// ClassificationPartial means at least the partial threshold is free.
	ClassificationPartial Classification = "partial"
	// ClassificationNone means the slot is below every threshold.
	ClassificationNone Classification = "none"
)

// Policy holds the classification cutoffs. The shipped defaults reproduce
// the reference behavior (near at N-1, partial at ceil(N/2)); both are
// presentation heuristics rather than load-bearing invariants, so they are
// kept adjustable.
type Policy struct {
	// NearShortfall is how many missing participants still count as near.
	NearShortfall int
	// PartialNum and PartialDen set the partial cutoff at
	// ceil(N * PartialNum / PartialDen).
	PartialNum int
	PartialDen int
}

// DefaultPolicy returns the reference classification cutoffs.
func DefaultPolicy() Policy {
	return Policy{NearShortfall: 1, PartialNum: 1, PartialDen: 2}
}

// partialThreshold returns the minimum count for partial classification.
func (p Policy) partialThreshold(totalParticipants int) int {
	den := p.PartialDen
	if den <= 0 {
		den = 2
	}
	num := p.PartialNum
	if num <= 0 {
		num = 1
	}
	return (totalParticipants*num + den - 1) / den
}

// Classify labels a slot count against the responded-participant total.
func (p Policy) Classify(count, totalParticipants int) Classification {
	if totalParticipants == 0 {
		return ClassificationNone
	}
	switch {
	case count == totalParticipants:
		return ClassificationPerfect
	case totalParticipants > 1 && count == totalParticipants-p.NearShortfall:
		return ClassificationNear
	case count >= p.partialThreshold(totalParticipants):
		return ClassificationPartial
	default:
		return ClassificationNone
	}
}

// SlotCount pairs a slot with how many participants are free at it.
type SlotCount struct {
	Slot  slot.Slot
	Count int
}

// Report is the aggregated availability picture for one plan.
// TotalParticipants of zero means nobody has responded yet; callers present
// that as a waiting state, never as a score.
type Report struct {
	PerfectCount       int
	NearCount          int
	TotalDistinctSlots int
	TotalParticipants  int
	BestSlots          []SlotCount
}

// Waiting reports whether no participant has responded yet.
func (r Report) Waiting() bool {
	return r.TotalParticipants == 0
}

// Aggregate counts, classifies, and ranks the union of all submitted sets.
// Each set belongs to one responded participant; callers must exclude
// participants who have not responded. Pure function of its inputs.
func Aggregate(sets []availability.Set, policy Policy) Report {
	totalParticipants := len(sets)
	report := Report{TotalParticipants: totalParticipants}
	if totalParticipants == 0 {
		return report
	}

	counts := make(map[slot.Slot]int)
	for _, set := range sets {
		for declared := range set.Slots {
			counts[declared]++
		}
	}
	report.TotalDistinctSlots = len(counts)

	partialCutoff := policy.partialThreshold(totalParticipants)
	for declared, count := range counts {
		switch policy.Classify(count, totalParticipants) {
		case ClassificationPerfect:
			report.PerfectCount++
		case ClassificationNear:
			report.NearCount++
		}
		if count >= partialCutoff {
			report.BestSlots = append(report.BestSlots, SlotCount{Slot: declared, Count: count})
		}
	}

	sort.Slice(report.BestSlots, func(i, j int) bool {
		if report.BestSlots[i].Count != report.BestSlots[j].Count {
			return report.BestSlots[i].Count > report.BestSlots[j].Count
		}
		return report.BestSlots[i].Slot.Before(report.BestSlots[j].Slot)
	})

	return report
}
