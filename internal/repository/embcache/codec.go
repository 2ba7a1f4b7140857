package embcache

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kailas-cloud/rankfuse/internal/domain"
)

// Wire format: one kind byte, then row count and dimension as uint32,
// then float32 values row-major, all little-endian. Single vectors are
// stored as one row.
const (
	kindSingle byte = 0
	kindMulti  byte = 1
)

func encodeRepresentation(repr domain.Representation) ([]byte, error) {
	var kind byte
	var rows [][]float32
	if repr.IsMulti() {
		kind = kindMulti
		rows = repr.Vectors()
	} else {
		kind = kindSingle
		rows = [][]float32{repr.Vector()}
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("refusing to cache empty representation")
	}

	dim := len(rows[0])
	buf := make([]byte, 0, 9+4*len(rows)*dim)
	buf = append(buf, kind)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rows)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dim))

	for i, row := range rows {
		if len(row) != dim {
			return nil, fmt.Errorf("ragged representation: row %d has %d values, expected %d", i, len(row), dim)
		}
		for _, v := range row {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}
	return buf, nil
}

func decodeRepresentation(data []byte) (domain.Representation, error) {
	if len(data) < 9 {
		return domain.Representation{}, fmt.Errorf("truncated representation: %d bytes", len(data))
	}
	kind := data[0]
	rows := int(binary.LittleEndian.Uint32(data[1:5]))
	dim := int(binary.LittleEndian.Uint32(data[5:9]))

	payload := data[9:]
	if rows <= 0 || dim <= 0 || len(payload) != 4*rows*dim {
		return domain.Representation{}, fmt.Errorf(
			"inconsistent representation header: %d rows x %d dims, %d payload bytes", rows, dim, len(payload),
		)
	}

	vecs := make([][]float32, rows)
	for r := range rows {
		vec := make([]float32, dim)
		for d := range dim {
			off := 4 * (r*dim + d)
			vec[d] = math.Float32frombits(binary.LittleEndian.Uint32(payload[off : off+4]))
		}
		vecs[r] = vec
	}

	switch kind {
	case kindSingle:
		if rows != 1 {
			return domain.Representation{}, fmt.Errorf("single representation with %d rows", rows)
		}
		return domain.SingleVector(vecs[0]), nil
	case kindMulti:
		return domain.MultiVector(vecs), nil
	default:
		return domain.Representation{}, fmt.Errorf("unknown representation kind %d", kind)
	}
}
