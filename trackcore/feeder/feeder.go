// Package feeder implements C5, the Stream Feeder: the orchestration
// that turns a playable id into an opened, positioned LoadedStream —
// metadata lookup, format selection, key retrieval, buffer sizing off
// the file header, and preamble/normalization handling. Grounded on the
// teacher's Player.LoadTrackWithIdAndFormat plus AudioFile's header/
// loadKey handling, and on original_source's AudioFileStreaming.java /
// CdnFeeder.java for the cache-headers-first and normalization-order
// edge cases the distilled spec only summarizes.
package feeder

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/vantapoint/trackcore/trackcore/buffer"
	"github.com/vantapoint/trackcore/trackcore/cache"
	"github.com/vantapoint/trackcore/trackcore/decrypt"
	"github.com/vantapoint/trackcore/trackcore/errs"
	"github.com/vantapoint/trackcore/trackcore/metadata"
	"github.com/vantapoint/trackcore/trackcore/source"
	"github.com/vantapoint/trackcore/trackcore/stream"
)

// oggPreambleBytes is the fixed container preamble spec.md §4.5 step 6
// calls out: 167 bytes of the 0xA7 Spotify-custom OGG header.
const oggPreambleBytes = 167

// normalizationBytes is the 16-byte loudness-normalization block spec.md
// §4.5 step 7 reads. Both paths read it from the start of the payload,
// before the preamble skip: the channel path through the ChunkedStream,
// the CDN path straight off the HTTP body.
const normalizationBytes = 16

// MetadataClient fetches track/episode metadata. The concrete RPC
// transport (Mercury) is out of scope per spec.md §1; this interface is
// the boundary.
type MetadataClient interface {
	GetTrack(id metadata.TrackID) (metadata.Track, error)
	GetEpisode(id metadata.TrackID) (metadata.Episode, error)
}

// AudioKeyProvider resolves the AES file key for a (track, file) pair.
// package audiokey's ChannelProvider satisfies this.
type AudioKeyProvider interface {
	Key(trackID, fileID []byte) ([]byte, error)
}

// CdnClient performs the CDN path's GET, used only when an Episode's
// ExternalURL is set and UseCDN is true (spec.md §4.5 step 2). No HEAD
// request is made.
// The default implementation is a thin net/http wrapper: no third-party
// HTTP client appears anywhere in the retrieved example pack for this
// concern, so the standard library is used deliberately here.
type CdnClient interface {
	Get(url string) (io.ReadCloser, int64, error)
}

// HTTPCdnClient is the default CdnClient, a plain net/http GET.
type HTTPCdnClient struct {
	Client *http.Client
}

func (c HTTPCdnClient) Get(url string) (io.ReadCloser, int64, error) {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, 0, fmt.Errorf("feeder: cdn get %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("feeder: cdn get %s: %w (status %d)", url, errs.ErrChannelError, resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}

// LoadedStream is the result of StreamFeeder.Load: an opened, positioned
// ChunkedStream ready for decoding, plus the metadata the caller needed
// to get there.
type LoadedStream struct {
	Stream            *stream.ChunkedStream
	File              metadata.AudioFile
	NormalizationGain []byte // 16 bytes, opaque to this package
}

// StreamFeeder turns a playable id into a LoadedStream.
type StreamFeeder struct {
	Metadata MetadataClient
	Keys     AudioKeyProvider
	Channel  source.ChunkSource
	Cache    *cache.SQLiteHandle // nil disables caching
	CDN      CdnClient
	Logger   CacheWarner
}

// CacheWarner receives best-effort cache failures.
type CacheWarner interface {
	Warn(msg string, err error)
}

// Load implements spec.md §4.5's algorithm: metadata → path selection →
// format/quality selection → key → buffer-sized stream → preamble skip.
func (f *StreamFeeder) Load(id metadata.TrackID, preferred metadata.Quality, useCDN bool) (*LoadedStream, error) {
	episode, isEpisode, err := f.fetchPlayable(id)
	if err != nil {
		return nil, err
	}

	if isEpisode && useCDN && episode.HasExternalURL() {
		return f.loadCdnPath(episode, preferred)
	}

	var playable metadata.Playable
	if isEpisode {
		playable = episode
	} else {
		track, err := f.Metadata.GetTrack(id)
		if err != nil {
			return nil, fmt.Errorf("feeder: get track: %w", err)
		}
		playable = track
	}

	return f.loadChannelPath(playable, preferred)
}

func (f *StreamFeeder) fetchPlayable(id metadata.TrackID) (metadata.Episode, bool, error) {
	episode, err := f.Metadata.GetEpisode(id)
	if err == nil {
		return episode, true, nil
	}
	if !errors.Is(err, errs.ErrMetadataNotFound) {
		return metadata.Episode{}, false, fmt.Errorf("feeder: get episode: %w", err)
	}
	return metadata.Episode{}, false, nil
}

// loadChannelPath is the original's AudioFileStreaming.open(): select a
// file, fetch its key, open chunk 0 to read the file-size header
// (preferring cached headers first), resize the buffer, and skip the
// preamble. Normalization data is read from within the already-opened,
// already-decrypted stream, after open but before the preamble skip is
// applied to the position the decoder will read from.
func (f *StreamFeeder) loadChannelPath(playable metadata.Playable, preferred metadata.Quality) (*LoadedStream, error) {
	file, err := metadata.SelectAudioFile(playable.AudioFiles(), preferred)
	if err != nil {
		return nil, err
	}

	key, err := f.Keys.Key(playable.ID().Gid(), file.FileID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrNoAudioKey, err)
	}

	decryptor, err := decrypt.New(key)
	if err != nil {
		return nil, fmt.Errorf("feeder: build decryptor: %w", err)
	}

	// Start with a one-chunk buffer; it's resized once the file-size
	// header arrives, matching the teacher's "assume kChunkSize, fix up
	// later" AudioFile construction.
	buf := buffer.New(decrypt.CHUNK_SIZE, decryptor)

	src := f.composeSource(file.FileID)

	var fileSize int
	headerDone := make(chan struct{})

	onHeader := func(hdrID byte, data []byte, cached bool) {
		if hdrID == 0x3 && len(data) == 4 {
			size := int(data[0])<<24 | int(data[1])<<16 | int(data[2])<<8 | int(data[3])
			fileSize = size * 4
			close(headerDone)
		}
	}

	// Prefer cached headers before issuing a channel request for chunk 0,
	// per the original's getAllHeaders-first ordering.
	if f.Cache != nil {
		if headers, err := f.Cache.GetAllHeaders(file.FileID); err == nil {
			if data, ok := headers[0x3]; ok && len(data) == 4 {
				onHeader(0x3, data, true)
			}
		}
	}

	if fileSize == 0 {
		buf.MarkRequested(0)
		if err := src.RequestChunk(file.FileID, 0, sinkAdapter{buf: buf, onHeader: onHeader}); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrChannelError, err)
		}
		<-headerDone
	}

	buf = buffer.New(fileSize, decryptor)
	s := stream.New(buf, src, file.FileID, decrypt.CHUNK_SIZE, nil)

	norm := make([]byte, normalizationBytes)
	if _, err := io.ReadFull(readerFor(s), norm); err != nil && err != io.EOF {
		return nil, fmt.Errorf("feeder: read normalization data: %w", err)
	}

	s.Skip(oggPreambleBytes)

	return &LoadedStream{Stream: s, File: file, NormalizationGain: norm}, nil
}

// loadCdnPath mirrors CdnFeeder.loadEpisode: HTTP GET the external URL,
// read the 16-byte normalization block directly off the body, then skip
// the OGG preamble — the same order as the channel path, but on the raw
// body rather than through a ChunkedStream, so the returned stream starts
// at position 0 of the post-preamble bytes.
func (f *StreamFeeder) loadCdnPath(episode metadata.Episode, preferred metadata.Quality) (*LoadedStream, error) {
	file, err := metadata.SelectAudioFile(episode.AudioFiles(), preferred)
	if err != nil {
		return nil, err
	}

	if f.CDN == nil {
		return nil, fmt.Errorf("feeder: cdn path requested but no CdnClient configured")
	}

	body, size, err := f.CDN.Get(episode.ExternalURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	norm := make([]byte, normalizationBytes)
	if _, err := io.ReadFull(body, norm); err != nil {
		return nil, fmt.Errorf("feeder: read cdn normalization data: %w", err)
	}

	preamble := make([]byte, oggPreambleBytes)
	if _, err := io.ReadFull(body, preamble); err != nil {
		return nil, fmt.Errorf("feeder: skip cdn preamble: %w", err)
	}

	rest, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("feeder: read cdn body: %w", err)
	}

	// CDN payloads arrive already decrypted and fully buffered: wrap them
	// in the same ChunkedStream machinery with an identity decryptor and
	// a source that never has anything left to fetch.
	buf := buffer.New(len(rest), noopDecryptor{})
	for i := 0; i < buf.ChunksTotal(); i++ {
		start := i * decrypt.CHUNK_SIZE
		end := start + len(buf.Payload(i))
		if err := buf.WriteChunk(i, rest[start:end], false); err != nil {
			return nil, fmt.Errorf("feeder: buffer cdn payload: %w", err)
		}
	}
	s := stream.New(buf, noopSource{}, file.FileID, decrypt.CHUNK_SIZE, nil)

	_ = size
	return &LoadedStream{Stream: s, File: file, NormalizationGain: norm}, nil
}

func (f *StreamFeeder) composeSource(fileID []byte) source.ChunkSource {
	if f.Cache == nil {
		return f.Channel
	}
	return &source.CompositeSource{
		Channel: f.Channel,
		Cache:   f.Cache,
		FileID:  fileID,
		Logger:  f.Logger,
	}
}

// sinkAdapter lets loadChannelPath deliver the chunk-0 request straight
// into the buffer while also observing its header records, without
// depending on stream's unexported bufferSink type.
type sinkAdapter struct {
	buf      *buffer.ChunkBuffer
	onHeader func(id byte, data []byte, cached bool)
}

func (s sinkAdapter) WriteChunk(index int, ciphertext []byte, cached bool) error {
	return s.buf.WriteChunk(index, ciphertext, cached)
}

func (s sinkAdapter) WriteHeader(id byte, data []byte, cached bool) error {
	if s.onHeader != nil {
		s.onHeader(id, data, cached)
	}
	return nil
}

func (s sinkAdapter) StreamError(code int) {
	s.buf.NotifyStreamError(errs.NewStreamError(code))
}

func readerFor(s *stream.ChunkedStream) io.Reader {
	return streamReader{s: s}
}

type streamReader struct{ s *stream.ChunkedStream }

func (r streamReader) Read(p []byte) (int, error) { return r.s.Read(p) }

// noopDecryptor and noopSource back the CDN path's stream, where bytes
// arrive already decrypted and fully buffered: there is nothing left
// for package decrypt or a ChunkSource to do.
type noopDecryptor struct{}

func (noopDecryptor) DecryptChunk(_ int, ciphertext, plaintext []byte) error {
	copy(plaintext, ciphertext)
	return nil
}

type noopSource struct{}

func (noopSource) RequestChunk(_ []byte, _ int, _ source.Sink) error { return nil }
