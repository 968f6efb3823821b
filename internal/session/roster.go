package session

import (
	"sort"

	"skirmish.ai/internal/protocol"
)

// Participant is one resolved roster member.
type Participant struct {
	ID    int    `json:"id"`
	Hero  string `json:"hero"`
	IsBot bool   `json:"is_bot"`
}

// Roster resolves participant identity from announce events. It is built
// exactly once, when the union of announced ids reaches the expected count,
// and is immutable afterwards.
type Roster struct {
	built   bool
	members map[int]Participant

	bots []int
	home []int
	away []int
}

func newRoster() *Roster {
	return &Roster{members: make(map[int]Participant)}
}

// observe records one announce. No-op after the roster is built; duplicate
// announces for an id overwrite nothing new.
func (r *Roster) observe(a protocol.AnnounceEvent) {
	if r.built {
		return
	}
	if _, seen := r.members[a.ID]; seen {
		return
	}
	r.members[a.ID] = Participant{ID: a.ID, Hero: a.Hero, IsBot: a.IsBot}
}

func (r *Roster) size() int { return len(r.members) }

func (r *Roster) Built() bool { return r.built }

// AllBots reports whether every announced participant is bot-controlled.
func (r *Roster) AllBots() bool {
	for _, p := range r.members {
		if !p.IsBot {
			return false
		}
	}
	return len(r.members) > 0
}

// build freezes the roster and partitions the controlled ids per side.
// override, when non-nil, replaces the announced bot id set; modes known to
// spawn extra non-playing participants use it instead of the announce count.
func (r *Roster) build(override []int) {
	if r.built {
		return
	}
	r.built = true

	if override != nil {
		r.bots = append([]int(nil), override...)
	} else {
		for id, p := range r.members {
			if p.IsBot {
				r.bots = append(r.bots, id)
			}
		}
	}
	sort.Ints(r.bots)

	for _, id := range r.bots {
		if protocol.TeamOf(id) == protocol.TeamHome {
			r.home = append(r.home, id)
		} else {
			r.away = append(r.away, id)
		}
	}
}

// Bots returns the ordered controlled participant ids.
func (r *Roster) Bots() []int { return r.bots }

func (r *Roster) BotCount() int { return len(r.bots) }

func (r *Roster) HomeBots() []int { return r.home }
func (r *Roster) AwayBots() []int { return r.away }

// Members returns a copy, ordered by id.
func (r *Roster) Members() []Participant {
	out := make([]Participant, 0, len(r.members))
	for _, p := range r.members {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
