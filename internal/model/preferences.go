package model

import "sort"

type Preferences struct {
	FavoriteTeams        []string `json:"favorite_teams"`
	NotificationsEnabled bool     `json:"notifications_enabled"`
}

// HasTeam reports whether id is one of the favorite teams.
func (p Preferences) HasTeam(id string) bool {
	for _, t := range p.FavoriteTeams {
		if t == id {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no memory with p.
func (p Preferences) Clone() Preferences {
	out := Preferences{NotificationsEnabled: p.NotificationsEnabled}
	if p.FavoriteTeams != nil {
		out.FavoriteTeams = append([]string(nil), p.FavoriteTeams...)
	}
	return out
}

// WithTeamToggled returns a copy of p with id added to or removed from the
// favorite set. The result is sorted and free of duplicates.
func (p Preferences) WithTeamToggled(id string) Preferences {
	out := Preferences{NotificationsEnabled: p.NotificationsEnabled}
	seen := make(map[string]struct{}, len(p.FavoriteTeams)+1)
	removed := false
	for _, t := range p.FavoriteTeams {
		if t == id {
			removed = true
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out.FavoriteTeams = append(out.FavoriteTeams, t)
	}
	if !removed {
		out.FavoriteTeams = append(out.FavoriteTeams, id)
	}
	sort.Strings(out.FavoriteTeams)
	if out.FavoriteTeams == nil {
		out.FavoriteTeams = []string{}
	}
	return out
}
