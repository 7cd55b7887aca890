package engine

import (
	"sort"

	"github.com/technobid/auction-backend/pkg/types"
)

// Standings ranks teams by the summed importance score of what they bought.
// Ties go to the team that spent less, then by name.
func Standings(s State) []types.Standing {
	scores := make(map[string]int, len(s.Catalogue))
	for _, item := range s.Catalogue {
		scores[item.ID] = item.ImportanceScore
	}

	out := make([]types.Standing, 0, len(s.Teams))
	for _, t := range s.Teams {
		row := types.Standing{Team: t.Clone()}
		for _, p := range t.BoughtItems {
			row.TotalScore += scores[p.ItemID]
			row.Spent += p.Price
			if p.Kind == types.KindAccessory {
				row.Accessories++
			} else {
				row.Players++
			}
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		if out[i].Spent != out[j].Spent {
			return out[i].Spent < out[j].Spent
		}
		return out[i].Team.Name < out[j].Team.Name
	})
	return out
}
