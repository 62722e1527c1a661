// This file is part of Ultragopher.
//
// Ultragopher is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Ultragopher is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Ultragopher.  If not, see <https://www.gnu.org/licenses/>.

// Package texturecache avoids re-uploading textures the GPU already has. The
// cache is consulted before any upload; a hit returns the existing backend
// handle.
//
// The content hash is part of the key deliberately. A texture at the same
// console-memory address with changed content must be treated as a fresh
// entry rather than a stale hit - correctness over raw hit rate.
//
// The cache is frame-scoped state. It must only ever be touched from the
// goroutine that issues GPU calls; there are no locks here and that is not
// an oversight.
package texturecache

import (
	"container/list"
	"hash/fnv"

	"github.com/jetsetilly/ultragopher/logger"
	"github.com/jetsetilly/ultragopher/performance"
)

// Key is the composite cache key. Two textures are the same if and only if
// every field matches.
type Key struct {
	Addr   uint32
	Width  int
	Height int
	Format uint8
	Hash   uint64
}

// HashTexels returns the content hash of a texel buffer, for use in the Hash
// field of a Key.
func HashTexels(texels []byte) uint64 {
	h := fnv.New64a()
	h.Write(texels)
	return h.Sum64()
}

type entry struct {
	key    Key
	handle uint32
	size   int64

	// the frame number this entry was last used. entries used this frame
	// are never evicted
	lastFrame uint64
}

// Cache is a content-addressed LRU cache of uploaded GPU textures.
type Cache struct {
	stats *performance.Stats

	// resident byte budget. eviction keeps resident at or below this
	budget int64

	// front of the list is the most recently used
	lru      *list.List
	entries  map[Key]*list.Element
	resident int64

	// current frame number, for the in-use marks
	frame uint64

	// called with the backend handle of every evicted entry, so the
	// rendering backend can destroy the texture. may be nil
	release func(handle uint32)
}

// NewCache is the preferred method of initialisation for the Cache type.
// Budget is in bytes.
func NewCache(budget int64, release func(handle uint32), stats *performance.Stats) *Cache {
	return &Cache{
		stats:   stats,
		budget:  budget,
		lru:     list.New(),
		entries: make(map[Key]*list.Element),
		release: release,
	}
}

// Lookup consults the cache before an upload. A hit returns the existing
// backend handle, refreshes the entry's recency and marks it in-use for the
// current frame.
func (cch *Cache) Lookup(key Key) (uint32, bool) {
	el, ok := cch.entries[key]
	if !ok {
		cch.stats.CacheMisses.Add(1)
		return 0, false
	}

	cch.lru.MoveToFront(el)
	ent := el.Value.(*entry)
	ent.lastFrame = cch.frame

	cch.stats.CacheHits.Add(1)

	return ent.handle, true
}

// Add records a freshly uploaded texture. It may evict least-recently-used
// entries (excluding any used this frame) until the resident size is back
// under budget.
//
// The return value reports whether the texture was actually cached. A
// texture too large to ever fit the budget is refused and the caller remains
// responsible for the handle.
func (cch *Cache) Add(key Key, handle uint32, size int64) bool {
	if size > cch.budget {
		logger.Logf("texturecache", "%dx%d texture larger than cache budget. not caching", key.Width, key.Height)
		return false
	}

	if el, ok := cch.entries[key]; ok {
		// same key added again. replace the handle and size
		ent := el.Value.(*entry)
		cch.resident -= ent.size
		if cch.release != nil && ent.handle != handle {
			cch.release(ent.handle)
		}
		ent.handle = handle
		ent.size = size
		ent.lastFrame = cch.frame
		cch.lru.MoveToFront(el)
		cch.resident += size
	} else {
		ent := &entry{key: key, handle: handle, size: size, lastFrame: cch.frame}
		cch.entries[key] = cch.lru.PushFront(ent)
		cch.resident += size
	}

	cch.evict()

	return true
}

// evict least-recently-used entries until resident size is within budget.
// entries used this frame are skipped.
func (cch *Cache) evict() {
	el := cch.lru.Back()
	for cch.resident > cch.budget && el != nil {
		prev := el.Prev()
		ent := el.Value.(*entry)
		if ent.lastFrame != cch.frame {
			cch.lru.Remove(el)
			delete(cch.entries, ent.key)
			cch.resident -= ent.size
			if cch.release != nil {
				cch.release(ent.handle)
			}
			cch.stats.CacheEvictions.Add(1)
		}
		el = prev
	}
}

// NewFrame advances the frame counter, clearing the in-use marks. Entries
// pinned by the previous frame become evictable again.
func (cch *Cache) NewFrame() {
	cch.frame++

	// entries pinned last frame may have been keeping the cache over
	// budget. settle the debt now
	cch.evict()
}

// Resident returns the total byte size of cached textures.
func (cch *Cache) Resident() int64 {
	return cch.resident
}

// Len returns the number of cached textures.
func (cch *Cache) Len() int {
	return cch.lru.Len()
}

// Clear evicts everything, releasing every backend handle.
func (cch *Cache) Clear() {
	for el := cch.lru.Front(); el != nil; el = el.Next() {
		if cch.release != nil {
			cch.release(el.Value.(*entry).handle)
		}
	}
	cch.lru.Init()
	cch.entries = make(map[Key]*list.Element)
	cch.resident = 0
}
