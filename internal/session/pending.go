package session

import "sort"

// pendingAcks tracks command batches awaiting acknowledgment. An entry
// exists from uid assignment until its counter reaches the expected
// participant count, at which point it is retired and forgotten.
type pendingAcks struct {
	counts  map[uint64]int
	retired uint64
}

func newPendingAcks() *pendingAcks {
	return &pendingAcks{counts: make(map[uint64]int)}
}

// note registers a freshly sent uid.
func (p *pendingAcks) note(uid uint64) {
	if _, ok := p.counts[uid]; !ok {
		p.counts[uid] = 0
	}
}

// ack counts one acknowledgment and reports whether the uid just retired.
// An ack for an unsent uid opens an entry: the log channel is at-least-once
// and may outrun local bookkeeping after a restart.
func (p *pendingAcks) ack(uid uint64, need int) bool {
	p.counts[uid]++
	if need > 0 && p.counts[uid] >= need {
		delete(p.counts, uid)
		p.retired++
		return true
	}
	return false
}

func (p *pendingAcks) has(uid uint64) bool {
	_, ok := p.counts[uid]
	return ok
}

// outstanding returns the unretired uids in order.
func (p *pendingAcks) outstanding() []uint64 {
	out := make([]uint64, 0, len(p.counts))
	for uid := range p.counts {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
