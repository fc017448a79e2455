package presence

import (
	"context"
	"log"

	"vcattend/internal/attendance"
)

// PlaceholderName labels a participant whose id never appeared in the
// directory returned with the roster.
const PlaceholderName = "Guest"

// Resolver answers "who is in this group's voice chat right now". Platform
// membership queries are inconsistent across query modes, so it tries the
// cheap snapshot first and falls back to the paged listing when the snapshot
// comes back empty or fails. All failures collapse to an empty result; a
// tick with nobody observed is a no-op, never an error.
type Resolver struct {
	api   API
	limit int
}

// NewResolver builds a resolver with the given roster size bound.
func NewResolver(api API, limit int) *Resolver {
	if limit <= 0 {
		limit = 100
	}
	return &Resolver{api: api, limit: limit}
}

// Fetch returns the current participants of the group's voice chat,
// deduplicated by user id in first-seen order. It never returns an error.
func (r *Resolver) Fetch(ctx context.Context, groupID int64) []attendance.Observation {
	call, err := r.api.ResolveLiveCall(ctx, groupID)
	if err != nil {
		log.Printf("presence: resolving call for group %d: %v", groupID, err)
		return nil
	}
	if call == nil {
		return nil
	}

	var found []attendance.Observation

	roster, err := r.api.CallSnapshot(ctx, *call, r.limit)
	if err != nil {
		log.Printf("presence: snapshot for group %d: %v", groupID, err)
	} else {
		found = observations(roster)
	}

	if len(found) == 0 {
		roster, err = r.api.CallParticipants(ctx, *call, r.limit, "")
		if err != nil {
			log.Printf("presence: paged list for group %d: %v", groupID, err)
			return nil
		}
		found = observations(roster)
	}

	return dedup(found)
}

// observations maps roster entries to observations, resolving names through
// the roster's user directory.
func observations(roster Roster) []attendance.Observation {
	names := make(map[int64]string, len(roster.Users))
	for _, u := range roster.Users {
		name := u.FirstName
		if name == "" {
			name = "Unknown"
		}
		names[u.ID] = name
	}
	var obs []attendance.Observation
	for _, p := range roster.Participants {
		if p.UserID == 0 {
			continue
		}
		name, ok := names[p.UserID]
		if !ok {
			name = PlaceholderName
		}
		obs = append(obs, attendance.Observation{UserID: p.UserID, Name: name})
	}
	return obs
}

// dedup keeps the first occurrence of each user id.
func dedup(obs []attendance.Observation) []attendance.Observation {
	if len(obs) == 0 {
		return nil
	}
	seen := make(map[int64]bool, len(obs))
	unique := obs[:0]
	for _, o := range obs {
		if seen[o.UserID] {
			continue
		}
		seen[o.UserID] = true
		unique = append(unique, o)
	}
	return unique
}
