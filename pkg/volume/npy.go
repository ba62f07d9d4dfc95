package volume

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"

	"optreg/internal/models"
)

// ErrRank is returned when a NumPy array has an unexpected number of axes
var ErrRank = errors.New("unexpected array rank")

// LoadLabels reads a 3-D NumPy annotation volume. Integer and float dtypes
// are accepted and converted to int32; Fortran-ordered arrays are
// transposed to row-major.
func LoadLabels(path string) (*models.LabelVolume, error) {
	rdr, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open label volume: %w", err)
	}
	if len(rdr.Shape) != 3 {
		return nil, fmt.Errorf("%w: label volume %s has shape %v", ErrRank, path, rdr.Shape)
	}

	values, err := readInt32(rdr)
	if err != nil {
		return nil, fmt.Errorf("failed to read label volume %s: %w", path, err)
	}

	shape := [3]int{rdr.Shape[0], rdr.Shape[1], rdr.Shape[2]}
	if rdr.ColumnMajor {
		values = fortranToC3(values, shape)
	}

	log.WithFields(log.Fields{
		"path":   path,
		"shape":  shape,
		"dtype":  rdr.Dtype,
		"voxels": humanize.Comma(int64(len(values))),
	}).Debug("Loaded label volume")

	return &models.LabelVolume{Data: values, Shape: shape}, nil
}

// LoadMatrix reads a 2-D NumPy array as row-major float64 values
func LoadMatrix(path string) (rows, cols int, data []float64, err error) {
	rdr, err := gonpy.NewFileReader(path)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("failed to open array: %w", err)
	}
	if len(rdr.Shape) != 2 {
		return 0, 0, nil, fmt.Errorf("%w: %s has shape %v", ErrRank, path, rdr.Shape)
	}

	data, err = readFloat64(rdr)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("failed to read array %s: %w", path, err)
	}

	rows, cols = rdr.Shape[0], rdr.Shape[1]
	if rdr.ColumnMajor {
		out := make([]float64, len(data))
		for c := 0; c < cols; c++ {
			for r := 0; r < rows; r++ {
				out[r*cols+c] = data[c*rows+r]
			}
		}
		data = out
	}
	return rows, cols, data, nil
}

// dtype strips the byte order marker, e.g. "<u2" -> "u2"
func dtype(rdr *gonpy.NpyReader) string {
	return strings.TrimLeft(rdr.Dtype, "<>|=")
}

func readFloat64(rdr *gonpy.NpyReader) ([]float64, error) {
	switch dtype(rdr) {
	case "f8":
		return rdr.GetFloat64()
	case "f4":
		return convert(rdr.GetFloat32)
	case "i8":
		return convert(rdr.GetInt64)
	case "i4":
		return convert(rdr.GetInt32)
	case "i2":
		return convert(rdr.GetInt16)
	case "i1":
		return convert(rdr.GetInt8)
	case "u8":
		return convert(rdr.GetUint64)
	case "u4":
		return convert(rdr.GetUint32)
	case "u2":
		return convert(rdr.GetUint16)
	case "u1":
		return convert(rdr.GetUint8)
	}
	return nil, fmt.Errorf("unsupported dtype %q", rdr.Dtype)
}

func readInt32(rdr *gonpy.NpyReader) ([]int32, error) {
	switch dtype(rdr) {
	case "i4":
		return rdr.GetInt32()
	case "i8":
		return narrow(rdr.GetInt64)
	case "i2":
		return narrow(rdr.GetInt16)
	case "i1":
		return narrow(rdr.GetInt8)
	case "u8":
		return narrow(rdr.GetUint64)
	case "u4":
		return narrow(rdr.GetUint32)
	case "u2":
		return narrow(rdr.GetUint16)
	case "u1":
		return narrow(rdr.GetUint8)
	case "f8":
		return narrow(rdr.GetFloat64)
	case "f4":
		return narrow(rdr.GetFloat32)
	}
	return nil, fmt.Errorf("unsupported dtype %q", rdr.Dtype)
}

type number interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

func convert[T number](get func() ([]T, error)) ([]float64, error) {
	in, err := get()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out, nil
}

func narrow[T number](get func() ([]T, error)) ([]int32, error) {
	in, err := get()
	if err != nil {
		return nil, err
	}
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out, nil
}

// fortranToC3 reorders a column-major 3-D array into row-major order
func fortranToC3(in []int32, shape [3]int) []int32 {
	out := make([]int32, len(in))
	n0, n1, n2 := shape[0], shape[1], shape[2]
	for i := 0; i < n0; i++ {
		for j := 0; j < n1; j++ {
			for k := 0; k < n2; k++ {
				out[(i*n1+j)*n2+k] = in[i+n0*(j+n1*k)]
			}
		}
	}
	return out
}
