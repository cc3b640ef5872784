// Package cache memoizes STT, MT, and TTS results per meeting room. Many
// listeners in a room request the same translations, and concurrent speakers
// can replay identical audio; the cache collapses that repeated work with
// single-flight semantics so each distinct key invokes its producer at most
// once at a time.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultEntriesPerKind bounds each per-room LRU (one per result kind).
const DefaultEntriesPerKind = 256

// STTResult is a cached transcription.
type STTResult struct {
	Text       string
	Confidence float64
}

// TTSResult is cached synthesized audio.
type TTSResult struct {
	Audio      []byte
	DurationMs int
}

// RoomCache is the process-wide, room-scoped result cache. Safe for
// concurrent use. Entries live until evicted by the per-kind LRU bound or
// until [RoomCache.DropRoom] removes the whole room.
type RoomCache struct {
	entriesPerKind int

	mu    sync.Mutex
	rooms map[string]*roomShard
	group singleflight.Group
}

// roomShard holds one room's three LRUs. The hashicorp caches are internally
// locked, so lookups need no shard-level synchronization.
type roomShard struct {
	stt *lru.Cache[string, STTResult]
	mt  *lru.Cache[string, string]
	tts *lru.Cache[string, TTSResult]
}

// Option is a functional option for configuring a [RoomCache].
type Option func(*RoomCache)

// WithEntriesPerKind overrides [DefaultEntriesPerKind]. Values below 1 are
// ignored.
func WithEntriesPerKind(n int) Option {
	return func(c *RoomCache) {
		if n > 0 {
			c.entriesPerKind = n
		}
	}
}

// New creates an empty [RoomCache].
func New(opts ...Option) *RoomCache {
	c := &RoomCache{
		entriesPerKind: DefaultEntriesPerKind,
		rooms:          make(map[string]*roomShard),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetOrCreateSTT returns the transcription for (room, speaker, audio),
// invoking produce on a miss. The speaker id is part of the key because
// voice-adapted models may transcribe the same bytes differently per speaker.
// The boolean reports whether the result came from the cache or from a
// concurrent producer rather than this call's own produce. A failed produce
// is not cached.
func (c *RoomCache) GetOrCreateSTT(roomID, speakerID string, audio []byte, produce func() (STTResult, error)) (STTResult, bool, error) {
	shard := c.shard(roomID)
	key := joinKey("stt", roomID, speakerID, hashAudio(audio))

	if v, ok := shard.stt.Get(key); ok {
		return v, true, nil
	}
	v, err, shared := c.group.Do(key, func() (any, error) {
		if v, ok := shard.stt.Get(key); ok {
			return v, nil
		}
		res, err := produce()
		if err != nil {
			return STTResult{}, err
		}
		shard.stt.Add(key, res)
		return res, nil
	})
	if err != nil {
		return STTResult{}, false, err
	}
	return v.(STTResult), shared, nil
}

// GetOrCreateMT returns the translation for (room, text, source, target),
// invoking produce on a miss. Same contract as [RoomCache.GetOrCreateSTT].
func (c *RoomCache) GetOrCreateMT(roomID, text, sourceLang, targetLang string, produce func() (string, error)) (string, bool, error) {
	shard := c.shard(roomID)
	key := joinKey("mt", roomID, sourceLang, targetLang, text)

	if v, ok := shard.mt.Get(key); ok {
		return v, true, nil
	}
	v, err, shared := c.group.Do(key, func() (any, error) {
		if v, ok := shard.mt.Get(key); ok {
			return v, nil
		}
		res, err := produce()
		if err != nil {
			return "", err
		}
		shard.mt.Add(key, res)
		return res, nil
	})
	if err != nil {
		return "", false, err
	}
	return v.(string), shared, nil
}

// GetOrCreateTTS returns the synthesized audio for (room, text, target),
// invoking produce on a miss. Same contract as [RoomCache.GetOrCreateSTT].
func (c *RoomCache) GetOrCreateTTS(roomID, text, targetLang string, produce func() (TTSResult, error)) (TTSResult, bool, error) {
	shard := c.shard(roomID)
	key := joinKey("tts", roomID, targetLang, text)

	if v, ok := shard.tts.Get(key); ok {
		return v, true, nil
	}
	v, err, shared := c.group.Do(key, func() (any, error) {
		if v, ok := shard.tts.Get(key); ok {
			return v, nil
		}
		res, err := produce()
		if err != nil {
			return TTSResult{}, err
		}
		shard.tts.Add(key, res)
		return res, nil
	})
	if err != nil {
		return TTSResult{}, false, err
	}
	return v.(TTSResult), shared, nil
}

// DropRoom discards all cached results for a room. Called when the room's
// last session terminates.
func (c *RoomCache) DropRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, roomID)
}

// Rooms returns the number of rooms currently holding cached entries.
func (c *RoomCache) Rooms() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rooms)
}

// shard returns the room's shard, creating it on first use.
func (c *RoomCache) shard(roomID string) *roomShard {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.rooms[roomID]; ok {
		return s
	}
	// lru.New only fails for a non-positive size, which the constructor
	// rules out.
	stt, _ := lru.New[string, STTResult](c.entriesPerKind)
	mt, _ := lru.New[string, string](c.entriesPerKind)
	tts, _ := lru.New[string, TTSResult](c.entriesPerKind)
	s := &roomShard{stt: stt, mt: mt, tts: tts}
	c.rooms[roomID] = s
	return s
}

// hashAudio digests PCM content so audio bytes can key a map.
func hashAudio(audio []byte) string {
	sum := sha256.Sum256(audio)
	return hex.EncodeToString(sum[:])
}

// joinKey builds a cache key with a separator that cannot occur in ids or
// language codes.
func joinKey(parts ...string) string {
	return strings.Join(parts, "\x1f")
}
