// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package sctpcore

import (
	"sync"

	"github.com/hrissan/sctpmux/sctperrors"
)

// Registry maps engine handles to sockets. It is the only mutable state shared
// between engine goroutines and application goroutines.
//
// Each socket is either
// 1. registered, exactly one handle maps to it, callbacks reach it
// 2. not registered (never was, or closed), callbacks for its old handle are dropped
// Sockets never go back from 2 to 1.
type Registry struct {
	mu      sync.RWMutex
	sockets map[Handle]Socket
}

func NewRegistry() *Registry {
	return &Registry{sockets: map[Handle]Socket{}}
}

// Panics if handle or socket is already registered, this means engine reused
// a handle before we removed it, or Manager has a bug.
func (r *Registry) Insert(h Handle, s Socket) {
	if !h.Valid() {
		panic(sctperrors.ErrNoHandle)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sockets[h]; ok {
		panic(sctperrors.ErrDuplicateHandle)
	}
	for _, s2 := range r.sockets {
		if s2 == s {
			panic(sctperrors.ErrDuplicateHandle)
		}
	}
	r.sockets[h] = s
}

// Absence is normal, callback may race with close.
func (r *Registry) Lookup(h Handle) (Socket, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sockets[h]
	return s, ok
}

// Returns true only for the call which actually removed the entry.
func (r *Registry) Remove(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sockets[h]; !ok {
		return false
	}
	delete(r.sockets, h)
	return true
}

// Linear scan, registry contains only live sockets, so it is small.
// If we ever have thousands of associations, keep reverse map under the same lock.
func (r *Registry) ResolveHandle(s Socket) Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for h, s2 := range r.sockets {
		if s2 == s {
			return h
		}
	}
	return NoHandle
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sockets)
}

// fn is called on a snapshot without lock held, so it may call Remove.
func (r *Registry) Range(fn func(h Handle, s Socket) bool) {
	r.mu.RLock()
	handles := make([]Handle, 0, len(r.sockets))
	sockets := make([]Socket, 0, len(r.sockets))
	for h, s := range r.sockets {
		handles = append(handles, h)
		sockets = append(sockets, s)
	}
	r.mu.RUnlock()
	for i, h := range handles {
		if !fn(h, sockets[i]) {
			return
		}
	}
}
