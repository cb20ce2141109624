// Package matrix holds the atomic counter structs incremented on the
// server's hot paths (network I/O, request dispatch, pool scheduling) and
// differenced on a fixed interval by the server's monitor goroutine.
//
// Every field is a lock-free atomic.Uint64. Snapshot copies the current
// values out of the atomics into a plain struct so two snapshots can be
// subtracted to produce a delta with the same shape.
package matrix

import "sync/atomic"

// Network tracks connection and packet-level counters.
type Network struct {
	StickyPackets   atomic.Uint64
	ConnCreated     atomic.Uint64
	ConnReleased    atomic.Uint64
	InvalidPackets  atomic.Uint64
}

// NetworkSnapshot is a point-in-time, non-atomic copy of Network.
type NetworkSnapshot struct {
	StickyPackets  uint64
	ConnCreated    uint64
	ConnReleased   uint64
	InvalidPackets uint64
}

// Snapshot reads all counters into a plain value.
func (n *Network) Snapshot() NetworkSnapshot {
	return NetworkSnapshot{
		StickyPackets:  n.StickyPackets.Load(),
		ConnCreated:    n.ConnCreated.Load(),
		ConnReleased:   n.ConnReleased.Load(),
		InvalidPackets: n.InvalidPackets.Load(),
	}
}

// Sub returns n minus prev, field by field.
func (n NetworkSnapshot) Sub(prev NetworkSnapshot) NetworkSnapshot {
	return NetworkSnapshot{
		StickyPackets:  n.StickyPackets - prev.StickyPackets,
		ConnCreated:    n.ConnCreated - prev.ConnCreated,
		ConnReleased:   n.ConnReleased - prev.ConnReleased,
		InvalidPackets: n.InvalidPackets - prev.InvalidPackets,
	}
}

// AsMap renders the snapshot as the flat string->uint64 shape the stats
// JSON endpoint emits.
func (n NetworkSnapshot) AsMap() map[string]uint64 {
	return map[string]uint64{
		"sticky_packets":  n.StickyPackets,
		"conn_created":    n.ConnCreated,
		"conn_released":   n.ConnReleased,
		"invalid_packets": n.InvalidPackets,
	}
}

// Request tracks per-command dispatch counters.
type Request struct {
	Processed      atomic.Uint64
	ProcessCost    atomic.Uint64 // nanoseconds, cumulative
	SendPacketCost atomic.Uint64 // nanoseconds, cumulative
}

// RequestSnapshot is a point-in-time, non-atomic copy of Request.
type RequestSnapshot struct {
	Processed      uint64
	ProcessCost    uint64
	SendPacketCost uint64
}

func (r *Request) Snapshot() RequestSnapshot {
	return RequestSnapshot{
		Processed:      r.Processed.Load(),
		ProcessCost:    r.ProcessCost.Load(),
		SendPacketCost: r.SendPacketCost.Load(),
	}
}

func (r RequestSnapshot) Sub(prev RequestSnapshot) RequestSnapshot {
	return RequestSnapshot{
		Processed:      r.Processed - prev.Processed,
		ProcessCost:    r.ProcessCost - prev.ProcessCost,
		SendPacketCost: r.SendPacketCost - prev.SendPacketCost,
	}
}

func (r RequestSnapshot) AsMap() map[string]uint64 {
	return map[string]uint64{
		"processed":        r.Processed,
		"process_cost":     r.ProcessCost,
		"send_packet_cost": r.SendPacketCost,
	}
}

// Pool tracks worker-pool queue/execute counters. Shared shape for both the
// request executor pool and the index manager's scan/delete pools.
type Pool struct {
	InQueue     atomic.Uint64
	Executed    atomic.Uint64
	QueueTime   atomic.Uint64 // nanoseconds, cumulative
	ExecuteTime atomic.Uint64 // nanoseconds, cumulative
}

type PoolSnapshot struct {
	InQueue     uint64
	Executed    uint64
	QueueTime   uint64
	ExecuteTime uint64
}

func (p *Pool) Snapshot() PoolSnapshot {
	return PoolSnapshot{
		InQueue:     p.InQueue.Load(),
		Executed:    p.Executed.Load(),
		QueueTime:   p.QueueTime.Load(),
		ExecuteTime: p.ExecuteTime.Load(),
	}
}

func (p PoolSnapshot) Sub(prev PoolSnapshot) PoolSnapshot {
	return PoolSnapshot{
		InQueue:     p.InQueue - prev.InQueue,
		Executed:    p.Executed - prev.Executed,
		QueueTime:   p.QueueTime - prev.QueueTime,
		ExecuteTime: p.ExecuteTime - prev.ExecuteTime,
	}
}

func (p PoolSnapshot) AsMap() map[string]uint64 {
	return map[string]uint64{
		"in_queue":     p.InQueue,
		"executed":     p.Executed,
		"queue_time":   p.QueueTime,
		"execute_time": p.ExecuteTime,
	}
}
