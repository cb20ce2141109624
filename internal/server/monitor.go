package server

import (
	"log"
	"time"
)

// monitor is §4.1's ftmc goroutine: it wakes every second (or on
// eventCond), and while the server is running diffs the three matrix
// snapshots against the previous tick, logs the delta (when general_log
// is on), and — the domain-stack addition of §4.5 — publishes the
// cumulative snapshot (not the delta) to Prometheus gauges so a /metrics
// scrape always matches the JSON /stats numbers.
// It exits as soon as running flips false.
func (s *Server) monitor() {
	defer close(s.monitorDone)

	prevNet := s.netMatrix.Snapshot()
	prevReq := s.reqMatrix.Snapshot()
	prevPool := s.poolMatrix.Snapshot()

	for s.running.Load() {
		s.lifecycleMu.Lock()
		waitWithTimeout(s.eventCond, time.Second)
		s.lifecycleMu.Unlock()

		if !s.running.Load() {
			return
		}

		curNet := s.netMatrix.Snapshot()
		curReq := s.reqMatrix.Snapshot()
		curPool := s.poolMatrix.Snapshot()

		deltaNet := curNet.Sub(prevNet)
		deltaReq := curReq.Sub(prevReq)
		deltaPool := curPool.Sub(prevPool)

		if s.cfg != nil && s.cfg.GeneralLog {
			log.Printf("server: ftmc net=%+v req=%+v pool=%+v", deltaNet, deltaReq, deltaPool)
		}

		// Publish the raw cumulative snapshot, not the delta computed above
		// for the log line: StatsSection (stats.go) reports cumulative
		// totals too, and a /metrics scrape is only "the same numbers as
		// /stats" if both sides are the same kind of number.
		if s.netGauges != nil {
			s.netGauges.Publish(curNet.AsMap())
		}
		if s.reqGauges != nil {
			s.reqGauges.Publish(curReq.AsMap())
		}
		if s.poolGauges != nil {
			s.poolGauges.Publish(curPool.AsMap())
		}

		prevNet, prevReq, prevPool = curNet, curReq, curPool
	}
}
