package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ConnectionInfo is a snapshot of one live connection's bookkeeping.
// Adapted from the teacher's server/transactions.go TransactionManager,
// repurposed from tracking *sql.Tx lifetimes to tracking live TCP
// connections (SPEC_FULL.md §3.3): there is no database transaction
// here, the transactional state lives in internal/txn.Transaction,
// owned per-connection and never shared.
type ConnectionInfo struct {
	ID           string
	RemoteAddr   string
	ConnectedAt  time.Time
	LastActivity time.Time
}

// Registry tracks every connection currently being served, for
// observability only. Unlike the teacher's TransactionManager it never
// closes or otherwise acts on what it tracks — stale entries are only
// ever logged (spec: the server must not unilaterally drop connections).
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*ConnectionInfo
	log         *logrus.Entry
}

// NewRegistry returns an empty Registry that logs through log.
func NewRegistry(log *logrus.Entry) *Registry {
	return &Registry{connections: make(map[string]*ConnectionInfo), log: log}
}

// Register adds a new connection and returns the UUID it was assigned.
func (r *Registry) Register(remoteAddr string) string {
	id := uuid.NewString()
	now := time.Now()

	r.mu.Lock()
	r.connections[id] = &ConnectionInfo{ID: id, RemoteAddr: remoteAddr, ConnectedAt: now, LastActivity: now}
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{"conn_id": id, "remote_addr": remoteAddr}).Info("connection accepted")
	return id
}

// Touch records that id just processed a command, for the stale sweep.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.connections[id]; ok {
		info.LastActivity = time.Now()
	}
}

// Unregister removes id from the registry, logging how long it lived.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	info, ok := r.connections[id]
	delete(r.connections, id)
	r.mu.Unlock()

	if ok {
		r.log.WithFields(logrus.Fields{
			"conn_id":     id,
			"remote_addr": info.RemoteAddr,
			"duration":    time.Since(info.ConnectedAt).String(),
		}).Info("connection closed")
	}
}

// Len reports the number of connections currently tracked.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// SweepStale logs (never closes) every connection whose LastActivity is
// older than idleSince. Intended to be called periodically by the
// server's own background loop.
func (r *Registry) SweepStale(idleSince time.Duration) {
	cutoff := time.Now().Add(-idleSince)

	r.mu.RLock()
	var stale []*ConnectionInfo
	for _, info := range r.connections {
		if info.LastActivity.Before(cutoff) {
			stale = append(stale, info)
		}
	}
	r.mu.RUnlock()

	for _, info := range stale {
		r.log.WithFields(logrus.Fields{
			"conn_id":     info.ID,
			"remote_addr": info.RemoteAddr,
			"idle_for":    time.Since(info.LastActivity).String(),
		}).Warn("connection idle beyond sweep threshold")
	}
}
