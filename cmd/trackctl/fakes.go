package main

import (
	"encoding/binary"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/vantapoint/trackcore/trackcore/decrypt"
	"github.com/vantapoint/trackcore/trackcore/errs"
	"github.com/vantapoint/trackcore/trackcore/metadata"
	"github.com/vantapoint/trackcore/trackcore/source"
)

// fakeCatalog is an in-memory MetadataClient standing in for the
// Mercury RPC the teacher's session.go talks to, carrying a handful of
// synthetic tracks so the demo loop has something to load/play without
// a real Spotify session.
type fakeCatalog struct {
	tracks map[string]metadata.Track
	keys   map[string][]byte
	cipher map[string][]byte
	plain  map[string]int
}

// seedTrack is the demo catalog's description of one canned track: a
// base-62 id, a display name, and the size of its synthetic payload.
type seedTrack struct {
	base62 string
	name   string
	size   int
}

var demoCatalog = []seedTrack{
	{"4uLU6hMCjMI75M1A2tKUQC", "Demo Track One", 2*decrypt.CHUNK_SIZE + 4096},
	{"2takcwOaAZWiXQijPHIx7B", "Demo Track Two", decrypt.CHUNK_SIZE + 1024},
}

// builtTrack is one seed track's materialized key/cipher/header data,
// ready to be installed into a fakeCatalog's maps.
type builtTrack struct {
	track  metadata.Track
	fileID []byte
	key    []byte
	cipher []byte
	plain  int
}

// newFakeCatalog builds each seed track's synthetic ciphertext
// concurrently — independent CPU-bound work with no shared state until
// the results are installed below — and installs the results into one
// catalog, standing in for a batch of independent Mercury lookups the
// teacher's session would otherwise make sequentially over the network.
func newFakeCatalog() *fakeCatalog {
	c := &fakeCatalog{
		tracks: make(map[string]metadata.Track),
		keys:   make(map[string][]byte),
		cipher: make(map[string][]byte),
		plain:  make(map[string]int),
	}

	built := make([]builtTrack, len(demoCatalog))

	var g errgroup.Group
	for i, seed := range demoCatalog {
		i, seed := i, seed
		g.Go(func() error {
			bt, err := buildTrack(seed)
			if err != nil {
				return err
			}
			built[i] = bt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		panic(err) // seed data is fixed at compile time; a failure here is a bug, not a runtime condition
	}

	for _, bt := range built {
		fileKey := string(bt.fileID)
		c.keys[fileKey] = bt.key
		c.cipher[fileKey] = bt.cipher
		c.plain[fileKey] = bt.plain
		c.tracks[bt.track.Gid.Hex()] = bt.track
	}
	return c
}

func buildTrack(seed seedTrack) (builtTrack, error) {
	id := metadata.ParseBase62(seed.base62)
	fileID := make([]byte, 20)
	rand.New(rand.NewSource(int64(len(seed.name)))).Read(fileID)

	key := make([]byte, 16)
	rand.New(rand.NewSource(int64(seed.size))).Read(key)

	plain := syntheticOggPayload(seed.size)
	cipher, err := encryptPayload(key, plain)
	if err != nil {
		return builtTrack{}, err
	}

	return builtTrack{
		track: metadata.Track{
			Gid:  id,
			Name: seed.name,
			Files: []metadata.AudioFile{
				{FileID: fileID, Format: metadata.FormatOggVorbis320},
			},
		},
		fileID: fileID,
		key:    key,
		cipher: cipher,
		plain:  len(plain),
	}, nil
}

// syntheticOggPayload builds a deterministic stand-in for an OGG
// container: 16 bytes of normalization data, a 167-byte preamble, then
// filler bytes — the order in which the feeder reads the normalization
// block and then skips the preamble — so that logic has real bytes to
// exercise end to end.
func syntheticOggPayload(totalSize int) []byte {
	buf := make([]byte, totalSize)
	for i := 0; i < 16 && i < len(buf); i++ {
		buf[i] = byte(i)
	}
	for i := 16; i < 16+167 && i < len(buf); i++ {
		buf[i] = 0xA7
	}
	for i := 167 + 16; i < len(buf); i++ {
		buf[i] = byte(i % 251)
	}
	return buf
}

func encryptPayload(key, plain []byte) ([]byte, error) {
	d, err := decrypt.New(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(plain))
	chunks := (len(plain) + decrypt.CHUNK_SIZE - 1) / decrypt.CHUNK_SIZE
	for i := 0; i < chunks; i++ {
		start := i * decrypt.CHUNK_SIZE
		end := start + decrypt.CHUNK_SIZE
		if end > len(plain) {
			end = len(plain)
		}
		if err := d.DecryptChunk(i, plain[start:end], out[start:end]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *fakeCatalog) GetTrack(id metadata.TrackID) (metadata.Track, error) {
	t, ok := c.tracks[id.Hex()]
	if !ok {
		return metadata.Track{}, errs.ErrMetadataNotFound
	}
	return t, nil
}

func (c *fakeCatalog) GetEpisode(id metadata.TrackID) (metadata.Episode, error) {
	return metadata.Episode{}, errs.ErrMetadataNotFound
}

// Key implements feeder.AudioKeyProvider against the keys this catalog
// generated for each file, standing in for S4's real channel RPC.
func (c *fakeCatalog) Key(trackID, fileID []byte) ([]byte, error) {
	key, ok := c.keys[string(fileID)]
	if !ok {
		return nil, errs.ErrNoAudioKey
	}
	return key, nil
}

// RequestChunk implements source.ChunkSource directly off the
// in-memory ciphertext, standing in for S3's real channel RPC.
func (c *fakeCatalog) RequestChunk(fileID []byte, index int, sink source.Sink) error {
	cipher, ok := c.cipher[string(fileID)]
	if !ok {
		sink.StreamError(1)
		return nil
	}

	if index == 0 {
		header := make([]byte, 4)
		binary.BigEndian.PutUint32(header, uint32(c.plain[string(fileID)]/4))
		sink.WriteHeader(0x3, header, false)
	}

	start := index * decrypt.CHUNK_SIZE
	if start >= len(cipher) {
		return nil
	}
	end := start + decrypt.CHUNK_SIZE
	if end > len(cipher) {
		end = len(cipher)
	}
	return sink.WriteChunk(index, cipher[start:end], false)
}
