package authority

import (
	"fmt"
	"sort"
	"strings"

	"github.com/technobid/auction-backend/internal/engine"
	"github.com/technobid/auction-backend/pkg/types"
)

// Restore overlays persisted documents on base, the state built from the
// seed. It returns the rebuilt state and the highest version found, which
// the authority continues from. Presence is never restored.
func Restore(base engine.State, docs []types.Document) (engine.State, uint64, error) {
	s := base
	s.Catalogue = append([]types.CatalogueEntry(nil), base.Catalogue...)
	byID := make(map[string]int, len(s.Catalogue))
	for i, item := range s.Catalogue {
		byID[item.ID] = i
	}

	var version uint64
	var teams []types.Team
	for _, d := range docs {
		if d.Version > version {
			version = d.Version
		}
		if d.Deleted {
			continue
		}
		switch {
		case d.Key == types.KeyLobby:
			var settings types.LobbySettings
			if err := d.Decode(&settings); err != nil {
				return base, 0, fmt.Errorf("decode %s: %w", d.Key, err)
			}
			status, ok := types.ParseLobbyStatus(string(settings.Status))
			if !ok {
				return base, 0, fmt.Errorf("decode %s: unknown status %q", d.Key, settings.Status)
			}
			s.Lobby = status

		case d.Key == types.KeyAuction:
			var auction types.AuctionState
			if err := d.Decode(&auction); err != nil {
				return base, 0, fmt.Errorf("decode %s: %w", d.Key, err)
			}
			s.Auction = auction

		case strings.HasPrefix(d.Key, types.PrefixTeams):
			var team types.Team
			if err := d.Decode(&team); err != nil {
				return base, 0, fmt.Errorf("decode %s: %w", d.Key, err)
			}
			teams = append(teams, team)

		case strings.HasPrefix(d.Key, types.PrefixPlayers):
			var item types.CatalogueEntry
			if err := d.Decode(&item); err != nil {
				return base, 0, fmt.Errorf("decode %s: %w", d.Key, err)
			}
			// items dropped from the seed stay dropped
			if i, ok := byID[item.ID]; ok {
				s.Catalogue[i] = item
			}
		}
	}

	if teams != nil {
		sort.Slice(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
		s.Teams = teams
	}
	return s, version, nil
}
