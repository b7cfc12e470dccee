package serialization

import (
	"github.com/born-ml/labelattn/internal/tensor"
)

// Format constants.
const (
	HeaderSizeBytes = 8              // uint64 LE header length prefix
	HeaderAlignment = 8              // JSON header is space padded to this boundary
	MetadataKey     = "__metadata__" // reserved header entry for string metadata
	ChecksumKey     = "checksum"     // metadata key holding the hex SHA-256 of the data section
)

// Data type strings as they appear in the header.
const (
	DTypeF32 = "F32"
	DTypeI64 = "I64"
)

// TensorInfo describes one tensor in the JSON header.
type TensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Size returns the byte length of the tensor data.
func (ti TensorInfo) Size() int64 {
	return ti.DataOffsets[1] - ti.DataOffsets[0]
}

// Index is a rank-1 int64 tensor, such as a label to category map.
type Index []int64

// File is the in-memory content of a SafeTensors file.
// Tensor names are unique across Tensors and Indices.
type File struct {
	Tensors  map[string]*tensor.RawTensor // F32
	Indices  map[string]Index             // I64, rank 1
	Metadata map[string]string
}

// dtypeSize returns the element size of dtype in bytes.
func dtypeSize(dtype string) (int64, bool) {
	switch dtype {
	case DTypeF32:
		return 4, true
	case DTypeI64:
		return 8, true
	default:
		return 0, false
	}
}
