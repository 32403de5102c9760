// Copyright 2018 Jigsaw Operations LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Registry tracks live Writer/Reader pairs for observability — which
// peer a log line or metric belongs to — without ever participating
// in primitive selection; each adapter's Construction is still fixed
// at construction time, per spec.md's Non-goals.
package streamio

import (
	"container/list"
	"net"
	"sync"
)

// StreamEntry identifies one live adapter pair registered with a
// Registry. The public field is constant after PushBack; lastClientIP
// is mutable under the registry's mutex.
type StreamEntry struct {
	ID           string
	lastClientIP net.IP
}

// Registry is a thread-safe collection of StreamEntry values that
// supports snapshotting in client-IP-affinity order and moving an
// entry to the front on use, the shape outline-ss-server's CipherList
// uses for cipher selection, repurposed here for stream tracking.
type Registry interface {
	PushBack(id string) *list.Element
	SnapshotForClientIP(clientIP net.IP) []*list.Element
	MarkUsedByClientIP(e *list.Element, clientIP net.IP)
	Remove(e *list.Element)
}

type registry struct {
	list *list.List
	mu   sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() Registry {
	return &registry{list: list.New()}
}

func (r *registry) PushBack(id string) *list.Element {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list.PushBack(&StreamEntry{ID: id})
}

func matchesIP(e *list.Element, clientIP net.IP) bool {
	s := e.Value.(*StreamEntry)
	return clientIP != nil && clientIP.Equal(s.lastClientIP)
}

// SnapshotForClientIP returns every registered entry, with those last
// associated with clientIP moved to the front, in recency order.
func (r *registry) SnapshotForClientIP(clientIP net.IP) []*list.Element {
	r.mu.RLock()
	defer r.mu.RUnlock()
	affine := make([]*list.Element, 0, r.list.Len())
	remaining := make([]*list.Element, 0, r.list.Len())
	for e := r.list.Front(); e != nil; e = e.Next() {
		if matchesIP(e, clientIP) {
			affine = append(affine, e)
		} else {
			remaining = append(remaining, e)
		}
	}
	return append(affine, remaining...)
}

// MarkUsedByClientIP moves e to the front of the registry and records
// clientIP as its last-seen address.
func (r *registry) MarkUsedByClientIP(e *list.Element, clientIP net.IP) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list.MoveToFront(e)
	s := e.Value.(*StreamEntry)
	s.lastClientIP = clientIP
}

// Remove deregisters e, e.g. once its adapter has been closed.
func (r *registry) Remove(e *list.Element) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list.Remove(e)
}
