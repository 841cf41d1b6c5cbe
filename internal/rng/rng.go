// Package rng supplies the random landing offsets for wheel spins, either
// from crypto/rand or from a provably-fair HMAC-SHA256 byte stream.
package rng

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
)

// ErrSeedMismatch means a revealed server seed does not hash to the
// published commitment.
var ErrSeedMismatch = errors.New("rng: server seed does not match hash")

// Proof identifies the seeded draw behind a spin. The server seed itself is
// only ever stored as its hash.
type Proof struct {
	ServerSeedHash string `json:"serverSeedHash"`
	ClientSeed     string `json:"clientSeed"`
	Nonce          uint64 `json:"nonce"`
}

// Draw is one value in [0, 1) plus the proof when the source is seeded.
type Draw struct {
	Value float64
	Proof *Proof
}

// Source produces uniform draws in [0, 1).
type Source interface {
	Next() (Draw, error)
}

// CryptoSource draws from crypto/rand.
type CryptoSource struct{}

// Next returns 53 random bits scaled into [0, 1).
func (CryptoSource) Next() (Draw, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return Draw{}, fmt.Errorf("rng: read entropy: %w", err)
	}
	v := binary.BigEndian.Uint64(b[:]) >> 11
	return Draw{Value: float64(v) / (1 << 53)}, nil
}

// SeededSource draws one float per nonce from the HMAC stream and advances
// the nonce after each draw.
type SeededSource struct {
	mu         sync.Mutex
	serverSeed string
	serverHash string
	clientSeed string
	nonce      uint64
}

// NewSeededSource starts a seeded stream at the given nonce.
func NewSeededSource(serverSeed, clientSeed string, nonce uint64) *SeededSource {
	return &SeededSource{
		serverSeed: serverSeed,
		serverHash: HashSeed(serverSeed),
		clientSeed: clientSeed,
		nonce:      nonce,
	}
}

// Next returns the first float for the current nonce.
func (s *SeededSource) Next() (Draw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := NewByteGenerator(s.serverSeed, s.clientSeed, s.nonce, 0).NextFloat()
	d := Draw{
		Value: v,
		Proof: &Proof{ServerSeedHash: s.serverHash, ClientSeed: s.clientSeed, Nonce: s.nonce},
	}
	s.nonce++
	return d, nil
}

// Nonce is the nonce the next draw will use.
func (s *SeededSource) Nonce() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonce
}

// ServerSeedHash is the published commitment for the server seed.
func (s *SeededSource) ServerSeedHash() string {
	return s.serverHash
}

// ClientSeed is the client half of the seed pair.
func (s *SeededSource) ClientSeed() string {
	return s.clientSeed
}

// Resume moves the stream forward to nonce. It never moves backwards, so a
// nonce is not handed out twice.
func (s *SeededSource) Resume(nonce uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nonce > s.nonce {
		s.nonce = nonce
	}
}

// ByteGenerator streams HMAC-SHA256(serverSeed, "client:nonce:round")
// output, 32 bytes per round.
type ByteGenerator struct {
	serverSeed string
	clientSeed string
	nonce      uint64
	round      uint64
	pos        int
	buf        [32]byte
}

// NewByteGenerator positions the stream at cursor bytes from the start.
func NewByteGenerator(serverSeed, clientSeed string, nonce, cursor uint64) *ByteGenerator {
	bg := &ByteGenerator{
		serverSeed: serverSeed,
		clientSeed: clientSeed,
		nonce:      nonce,
		round:      cursor / 32,
		pos:        int(cursor % 32),
	}
	bg.fill()
	return bg
}

func (bg *ByteGenerator) fill() {
	h := hmac.New(sha256.New, []byte(bg.serverSeed))
	fmt.Fprintf(h, "%s:%d:%d", bg.clientSeed, bg.nonce, bg.round)
	copy(bg.buf[:], h.Sum(nil))
}

// Next returns the next byte, rolling into a new round when needed.
func (bg *ByteGenerator) Next() byte {
	if bg.pos >= len(bg.buf) {
		bg.round++
		bg.pos = 0
		bg.fill()
	}
	b := bg.buf[bg.pos]
	bg.pos++
	return b
}

// NextFloat consumes 4 bytes: Σ b_i / 256^(i+1).
func (bg *ByteGenerator) NextFloat() float64 {
	return bytesToFloat([4]byte{bg.Next(), bg.Next(), bg.Next(), bg.Next()})
}

func bytesToFloat(b [4]byte) float64 {
	result := 0.0
	divider := 1.0
	for _, x := range b {
		divider *= 256
		result += float64(x) / divider
	}
	return result
}

// Floats returns count floats starting at the given byte cursor.
func Floats(serverSeed, clientSeed string, nonce, cursor uint64, count int) []float64 {
	bg := NewByteGenerator(serverSeed, clientSeed, nonce, cursor)
	out := make([]float64, count)
	for i := range out {
		out[i] = bg.NextFloat()
	}
	return out
}

// HashSeed is the hex SHA-256 of a server seed.
func HashSeed(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

// VerifyDraw recomputes the value behind a proof once the server seed has
// been revealed.
func VerifyDraw(serverSeed string, p Proof) (float64, error) {
	if HashSeed(serverSeed) != p.ServerSeedHash {
		return 0, fmt.Errorf("%w: %s", ErrSeedMismatch, p.ServerSeedHash)
	}
	return NewByteGenerator(serverSeed, p.ClientSeed, p.Nonce, 0).NextFloat(), nil
}
