// Package volume reads the binary inputs of the registration: Drishti OPT
// volumes and NumPy arrays holding atlas labels and landmarks.
package volume

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"os"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"optreg/internal/models"
)

// HeaderSize is the length of the Drishti .pvl.nc header in bytes
const HeaderSize = 13

// HeaderMode selects how the dimension fields of the header are decoded
type HeaderMode int

const (
	// HeaderDrishti reads Z, X and Y as little-endian uint32 fields at
	// bytes 1-4, 5-8 and 9-12
	HeaderDrishti HeaderMode = iota

	// HeaderLegacy reproduces the shift accumulation used by the first
	// pipeline: Z = b[1] + b[2]<<8, and X (bytes 8..5) and Y (bytes 12..9)
	// sum each byte shifted left by 2^(k+1) bits, k counting from the
	// highest byte. It agrees with HeaderDrishti for the 1023x1024x1024
	// scanner volumes.
	HeaderLegacy
)

var (
	// ErrShortHeader is returned when a buffer cannot hold the header
	ErrShortHeader = errors.New("volume header truncated")

	// ErrEmptyVolume is returned when a header encodes a zero extent
	ErrEmptyVolume = errors.New("volume header encodes an empty volume")

	// ErrSizeMismatch is returned when the voxel payload does not hold
	// exactly Z*X*Y bytes
	ErrSizeMismatch = errors.New("volume size does not match header")
)

// ParseHeaderMode maps a configuration string to a HeaderMode
func ParseHeaderMode(s string) (HeaderMode, error) {
	switch s {
	case "", "drishti":
		return HeaderDrishti, nil
	case "legacy":
		return HeaderLegacy, nil
	}
	return 0, fmt.Errorf("unknown header mode %q", s)
}

// Header holds the decoded fixed fields of a Drishti container
type Header struct {
	VoxelType uint8
	Z, X, Y   int
}

// Voxels returns the number of voxels the header describes. The second
// return value is false when the count does not fit a file in memory.
func (h Header) Voxels() (int, bool) {
	hi, zx := bits.Mul64(uint64(h.Z), uint64(h.X))
	if hi != 0 {
		return 0, false
	}
	hi, n := bits.Mul64(zx, uint64(h.Y))
	if hi != 0 || n > math.MaxInt-HeaderSize {
		return 0, false
	}
	return int(n), true
}

// DecodeHeader decodes the first HeaderSize bytes of buf
func DecodeHeader(buf []byte, mode HeaderMode) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(buf))
	}

	h := Header{VoxelType: buf[0]}
	switch mode {
	case HeaderDrishti:
		h.Z = int(binary.LittleEndian.Uint32(buf[1:5]))
		h.X = int(binary.LittleEndian.Uint32(buf[5:9]))
		h.Y = int(binary.LittleEndian.Uint32(buf[9:13]))
	case HeaderLegacy:
		h.Z = int(buf[1]) + int(buf[2])<<8
		h.X = legacyField(buf, 8)
		h.Y = legacyField(buf, 12)
	default:
		return Header{}, fmt.Errorf("unknown header mode %d", mode)
	}

	if h.Z == 0 || h.X == 0 || h.Y == 0 {
		return h, fmt.Errorf("%w: %dx%dx%d", ErrEmptyVolume, h.Z, h.X, h.Y)
	}
	return h, nil
}

// legacyField accumulates the four bytes ending at hi, highest first
func legacyField(buf []byte, hi int) int {
	v := 0
	for k := 0; k < 4; k++ {
		v += int(buf[hi-k]) << (1 << (k + 1))
	}
	return v
}

// Decode parses a complete Drishti container held in memory. The voxel
// payload must hold exactly the number of voxels given by the header.
func Decode(buf []byte, mode HeaderMode) (*models.Volume, error) {
	h, err := DecodeHeader(buf, mode)
	if err != nil {
		return nil, err
	}

	voxels, ok := h.Voxels()
	if !ok {
		return nil, fmt.Errorf("%w: header %dx%dx%d overflows, got %d bytes",
			ErrSizeMismatch, h.Z, h.X, h.Y, len(buf))
	}
	expected := HeaderSize + voxels
	if len(buf) != expected {
		return nil, fmt.Errorf("%w: header %dx%dx%d needs %d bytes, got %d",
			ErrSizeMismatch, h.Z, h.X, h.Y, expected, len(buf))
	}

	return &models.Volume{
		Data:      buf[HeaderSize:],
		Depth:     h.Z,
		Width:     h.X,
		Height:    h.Y,
		VoxelType: h.VoxelType,
	}, nil
}

// LoadVolume reads a Drishti volume from disk
func LoadVolume(path string, mode HeaderMode) (*models.Volume, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read volume: %w", err)
	}

	vol, err := Decode(buf, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to decode volume %s: %w", path, err)
	}

	log.WithFields(log.Fields{
		"path": path,
		"dims": fmt.Sprintf("%dx%dx%d", vol.Depth, vol.Width, vol.Height),
		"size": humanize.Bytes(uint64(len(buf))),
	}).Debug("Loaded volume")

	return vol, nil
}

// Encode serialises a volume in the Drishti layout. Used to write fixtures
// and cropped volumes.
func Encode(vol *models.Volume) []byte {
	buf := make([]byte, HeaderSize+len(vol.Data))
	buf[0] = vol.VoxelType
	binary.LittleEndian.PutUint32(buf[1:5], uint32(vol.Depth))
	binary.LittleEndian.PutUint32(buf[5:9], uint32(vol.Width))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(vol.Height))
	copy(buf[HeaderSize:], vol.Data)
	return buf
}
