package source

import "fmt"

// ChannelSource adapts a channel.Client-shaped type to ChunkSource
// without this package importing channel, avoiding the import cycle
// channel (which implements source.ChunkSource) would otherwise create
// with source (which channel.Client's RequestChunk signature depends
// on).
type ChannelSource struct {
	Requester func(fileID []byte, index int, sink Sink) error
}

func (c ChannelSource) RequestChunk(fileID []byte, index int, sink Sink) error {
	return c.Requester(fileID, index, sink)
}

// CacheLogger receives best-effort cache write failures, matching
// spec.md §4.2's "cache write failures are logged and swallowed".
type CacheLogger interface {
	Warn(msg string, err error)
}

// CacheStore is the subset of a cache.CacheHandle that CompositeSource
// needs: check, read, and best-effort write.
type CacheStore interface {
	HasChunk(fileID []byte, index int) (bool, error)
	ReadChunk(fileID []byte, index int) ([]byte, error)
	WriteChunk(fileID []byte, index int, ciphertext []byte) error
}

// CompositeSource implements spec.md §4.2's policy: prefer the cache
// when it already has the chunk, otherwise fetch from the channel and
// best-effort-populate the cache with what came back.
type CompositeSource struct {
	Channel ChunkSource
	Cache   CacheStore // nil disables caching entirely
	FileID  []byte
	Logger  CacheLogger // nil discards warnings
}

func (c *CompositeSource) RequestChunk(fileID []byte, index int, sink Sink) error {
	if c.Cache != nil {
		if has, err := c.Cache.HasChunk(fileID, index); err == nil && has {
			data, err := c.Cache.ReadChunk(fileID, index)
			if err == nil {
				return sink.WriteChunk(index, data, true)
			}
			c.warn(fmt.Sprintf("cache read failed for chunk %d, falling back to channel", index), err)
		}
	}

	cachingSink := sink
	if c.Cache != nil {
		cachingSink = &cacheFillSink{Sink: sink, cache: c.Cache, fileID: fileID, logger: c.Logger}
	}
	return c.Channel.RequestChunk(fileID, index, cachingSink)
}

func (c *CompositeSource) warn(msg string, err error) {
	if c.Logger != nil {
		c.Logger.Warn(msg, err)
	}
}

// cacheFillSink wraps a Sink so that a channel-delivered, uncached chunk
// is mirrored into the cache on a best-effort basis before being handed
// to the real sink, per spec.md §4.2.
type cacheFillSink struct {
	Sink
	cache  CacheStore
	fileID []byte
	logger CacheLogger
}

func (s *cacheFillSink) WriteChunk(index int, ciphertext []byte, cached bool) error {
	if !cached {
		if err := s.cache.WriteChunk(s.fileID, index, ciphertext); err != nil && s.logger != nil {
			s.logger.Warn(fmt.Sprintf("cache write failed for chunk %d", index), err)
		}
	}
	return s.Sink.WriteChunk(index, ciphertext, cached)
}
