package core

import (
	"fmt"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Listing is the set of skill names one resolved source offers.
type Listing struct {
	Source *ResolvedSource
	Skills []string
}

// SelectionResult is the outcome of SelectSkills.
type SelectionResult struct {
	Selected []Selection    // sorted by source index, then skill name
	Skipped  []SkippedSkill // sorted by skill name, then source
}

// candidate is one source offering a skill, annotated with its declaration
// index and whether its allow-list names the skill exactly.
type candidate struct {
	source   *ResolvedSource
	explicit bool
}

// rank orders candidates for one name; lower wins.
func (c candidate) rank(precedence AllowListPrecedence) (int, int) {
	tier := 1
	if precedence == PrecedenceExplicit && c.explicit {
		tier = 0
	}
	return tier, c.source.Index
}

// SelectSkills decides which (source, skill) pairs to fetch:
//
//  1. a name present in local is never fetched;
//  2. a source with an allow-list only offers names it admits;
//  3. of the remaining sources offering a name, the earliest declared wins
//     (under PrecedenceExplicit, exact allow-list entries outrank the rest
//     first).
//
// The result depends only on the inputs, not on the order of listings.
func SelectSkills(listings []Listing, local map[string]bool, precedence AllowListPrecedence) SelectionResult {
	var res SelectionResult
	byName := make(map[string][]candidate)

	for _, l := range listings {
		seen := make(map[string]bool, len(l.Skills))
		for _, name := range l.Skills {
			if seen[name] {
				continue
			}
			seen[name] = true

			if local[name] {
				res.Skipped = append(res.Skipped, SkippedSkill{Skill: name, Source: l.Source.Repo, Reason: SkipLocal})
				continue
			}
			admitted, explicit := admits(l.Source.Skills, name)
			if !admitted {
				res.Skipped = append(res.Skipped, SkippedSkill{Skill: name, Source: l.Source.Repo, Reason: SkipAllowList})
				continue
			}
			byName[name] = append(byName[name], candidate{source: l.Source, explicit: explicit})
		}
	}

	for name, cands := range byName {
		winner := cands[0]
		for _, c := range cands[1:] {
			ct, ci := c.rank(precedence)
			wt, wi := winner.rank(precedence)
			if ct < wt || (ct == wt && ci < wi) {
				winner = c
			}
		}
		res.Selected = append(res.Selected, Selection{Source: winner.source, Skill: name})

		for _, c := range cands {
			if c.source == winner.source {
				continue
			}
			reason := SkipShadowed
			if c.source.Index < winner.source.Index {
				reason = SkipOutranked
			}
			res.Skipped = append(res.Skipped, SkippedSkill{Skill: name, Source: c.source.Repo, Reason: reason})
		}
	}

	sort.Slice(res.Selected, func(i, j int) bool {
		a, b := res.Selected[i], res.Selected[j]
		if a.Source.Index != b.Source.Index {
			return a.Source.Index < b.Source.Index
		}
		return a.Skill < b.Skill
	})
	sort.Slice(res.Skipped, func(i, j int) bool {
		a, b := res.Skipped[i], res.Skipped[j]
		if a.Skill != b.Skill {
			return a.Skill < b.Skill
		}
		return a.Source < b.Source
	})
	return res
}

// admits reports whether an allow-list lets name through and whether it does
// so by naming it exactly. An empty allow-list admits everything.
func admits(allow []string, name string) (admitted, explicit bool) {
	if len(allow) == 0 {
		return true, false
	}
	for _, entry := range allow {
		if entry == name {
			return true, true
		}
	}
	for _, pattern := range allow {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true, false
		}
	}
	return false, false
}

// validateAllowList rejects malformed glob patterns.
func validateAllowList(allow []string) error {
	for _, pattern := range allow {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid skills pattern %q", pattern)
		}
	}
	return nil
}
