package session

import (
	"skirmish.ai/internal/bridge"
)

// registry is the bridge whitelist. Handlers run inside the tick loop, so
// they may read orchestrator fields without synchronization.
func (o *Orchestrator) registry() bridge.Registry {
	return bridge.Registry{
		"status": func(_ []any, _ map[string]any) (any, error) {
			return map[string]any{
				"session_id": o.id,
				"phase":      o.phase.String(),
				"tick":       o.tick,
				"state":      o.state.Snapshot(),
				"announced":  o.roster.size(),
				"pending":    o.pending.outstanding(),
			}, nil
		},
		"deadline": func(_ []any, _ map[string]any) (any, error) {
			return map[string]any{
				"deadline_s": o.cfg.Deadline().Seconds(),
				"step_avg_s": o.StepAverage().Seconds(),
			}, nil
		},
		"performance": func(_ []any, _ map[string]any) (any, error) {
			return o.perf.View(), nil
		},
		"roster": func(_ []any, _ map[string]any) (any, error) {
			return map[string]any{
				"built":   o.roster.Built(),
				"members": o.roster.Members(),
				"home":    o.roster.HomeBots(),
				"away":    o.roster.AwayBots(),
			}, nil
		},
		"stats": func(_ []any, _ map[string]any) (any, error) {
			return map[string]any{
				"home_feed":  o.home.Stats().View(),
				"away_feed":  o.away.Stats().View(),
				"home_depth": o.home.Depth(),
				"away_depth": o.away.Depth(),
				"log_lines":  o.recv.Lines(),
				"log_errors": o.recv.ParseErrs(),
				"log_depth":  o.recv.Depth(),
			}, nil
		},
		"stop": func(_ []any, _ map[string]any) (any, error) {
			o.RequestStop()
			return map[string]string{"msg": "stopping"}, nil
		},
	}
}
