// Copyright 2026 The Corvid Labs Authors
// SPDX-License-Identifier: Apache-2.0

package rtc

import "sync"

// channelRegistry is the PeerConnection-owned lookup table spec §3
// names: stream id -> DataChannel, mid -> Track. Channels and tracks
// never hold a back-pointer to their PeerConnection; they carry a
// lookup key and dispatch through this registry instead, which is how
// §9's "shared-pointer graphs with weak back-references" pattern is
// re-architected as explicit ownership with no cyclic lifetimes.
type channelRegistry struct {
	mu       sync.RWMutex
	channels map[uint16]*DataChannel
	tracks   map[string]*Track
}

func newChannelRegistry() *channelRegistry {
	return &channelRegistry{
		channels: make(map[uint16]*DataChannel),
		tracks:   make(map[string]*Track),
	}
}

// registerChannel adds dc under streamID. Invariant (spec §3): at most
// one DataChannel per stream id at a time.
func (r *channelRegistry) registerChannel(streamID uint16, dc *DataChannel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[streamID] = dc
}

func (r *channelRegistry) channel(streamID uint16) (*DataChannel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dc, ok := r.channels[streamID]
	return dc, ok
}

func (r *channelRegistry) unregisterChannel(streamID uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, streamID)
}

// nextFreeStreamID returns the lowest unused stream id with the given
// parity (0 for DTLS-client-assigned even ids, 1 for DTLS-server-
// assigned odd ids), per spec §3/§4.8.
func (r *channelRegistry) nextFreeStreamID(parity uint16) uint16 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id := parity; ; id += 2 {
		if _, used := r.channels[id]; !used {
			return id
		}
	}
}

func (r *channelRegistry) registerTrack(mid string, tr *Track) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracks[mid] = tr
}

func (r *channelRegistry) track(mid string) (*Track, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tr, ok := r.tracks[mid]
	return tr, ok
}

func (r *channelRegistry) unregisterTrack(mid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tracks, mid)
}

// allChannels/allTracks return snapshots for iteration during close
// (spec §4.7: "closes all channels and tracks" bottom-up).
func (r *channelRegistry) allChannels() []*DataChannel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*DataChannel, 0, len(r.channels))
	for _, dc := range r.channels {
		out = append(out, dc)
	}
	return out
}

func (r *channelRegistry) allTracks() []*Track {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Track, 0, len(r.tracks))
	for _, tr := range r.tracks {
		out = append(out, tr)
	}
	return out
}
