package category

import (
	"convosync/internal/model"
)

// Matches reports whether a conversation belongs to the given category.
// Categories overlap: an archived conversation assigned to the caller is
// in "archived", "mine" and "all" at once.
func Matches(c model.Conversation, cat model.Category, currentUserID string) bool {
	switch cat {
	case model.CategoryUnassigned:
		return c.AssignedUserID == ""
	case model.CategoryMine:
		return c.AssignedUserID != "" && c.AssignedUserID == currentUserID
	case model.CategoryNew:
		// "new" follows conversation status, not creation recency:
		// newly created conversations start out ACTIVE.
		return c.Status == model.StatusActive
	case model.CategoryArchived:
		return c.Status == model.StatusArchived
	default:
		return true
	}
}

// Counts computes the per-category totals over the complete ungrouped
// conversation set, ignoring whatever category is currently selected.
// Always a full recomputation; incremental counters drift.
func Counts(groups []model.ConversationGroup, currentUserID string) model.CategoryCounts {
	counts := make(model.CategoryCounts, len(model.Categories))
	for _, cat := range model.Categories {
		counts[cat] = 0
	}
	for _, g := range groups {
		for _, c := range g.Conversations {
			for _, cat := range model.Categories {
				if Matches(c, cat, currentUserID) {
					counts[cat]++
				}
			}
		}
	}
	return counts
}

// Apply returns the filtered view for the selected category together
// with counts over the unfiltered input. The input is never mutated;
// group and conversation order is preserved. For CategoryAll the input
// groups are returned as-is. Groups left empty by the filter are
// dropped; a surviving group's Stats.Total is recomputed to the
// filtered length.
func Apply(groups []model.ConversationGroup, selected model.Category, currentUserID string) ([]model.ConversationGroup, model.CategoryCounts) {
	counts := Counts(groups, currentUserID)

	if selected == "" || selected == model.CategoryAll {
		return groups, counts
	}

	var filtered []model.ConversationGroup
	for _, g := range groups {
		var convs []model.Conversation
		for _, c := range g.Conversations {
			if Matches(c, selected, currentUserID) {
				convs = append(convs, c)
			}
		}
		if len(convs) == 0 {
			continue
		}
		out := g
		out.Conversations = convs
		out.Stats.Total = len(convs)
		filtered = append(filtered, out)
	}
	return filtered, counts
}
