package serialization

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
)

// WriteFile writes f to path in SafeTensors format.
func WriteFile(path string, f *File) error {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	bw := bufio.NewWriter(file)
	if err := Encode(bw, f); err != nil {
		_ = file.Close() // Best effort close on error
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return file.Close()
}

// Encode writes f to w in SafeTensors format.
//
// Tensors are laid out in alphabetical name order. The data section checksum
// is added to the metadata under ChecksumKey.
func Encode(w io.Writer, f *File) error {
	names, err := tensorNames(f)
	if err != nil {
		return err
	}

	var data bytes.Buffer
	header := make(map[string]any, len(names)+1)
	for _, name := range names {
		start := int64(data.Len())
		var info TensorInfo
		if raw, ok := f.Tensors[name]; ok {
			info = TensorInfo{DType: DTypeF32, Shape: int64Shape(raw.Shape())}
			var buf [4]byte
			for _, v := range raw.Data() {
				binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
				data.Write(buf[:])
			}
		} else {
			idx := f.Indices[name]
			info = TensorInfo{DType: DTypeI64, Shape: []int64{int64(len(idx))}}
			var buf [8]byte
			for _, v := range idx {
				binary.LittleEndian.PutUint64(buf[:], uint64(v)) //nolint:gosec // G115: two's complement round trip
				data.Write(buf[:])
			}
		}
		info.DataOffsets = [2]int64{start, int64(data.Len())}
		header[name] = info
	}

	metadata := make(map[string]string, len(f.Metadata)+1)
	for k, v := range f.Metadata {
		metadata[k] = v
	}
	sum := ComputeChecksum(data.Bytes())
	metadata[ChecksumKey] = hex.EncodeToString(sum[:])
	header[MetadataKey] = metadata

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if pad := len(headerJSON) % HeaderAlignment; pad != 0 {
		headerJSON = append(headerJSON, bytes.Repeat([]byte(" "), HeaderAlignment-pad)...)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(data.Bytes()); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// tensorNames returns the sorted names of f, rejecting invalid or duplicate
// names and empty tensors.
func tensorNames(f *File) ([]string, error) {
	if f == nil {
		return nil, fmt.Errorf("nil file")
	}
	names := make([]string, 0, len(f.Tensors)+len(f.Indices))
	for name, raw := range f.Tensors {
		if raw == nil {
			return nil, fmt.Errorf("tensor %q is nil", name)
		}
		names = append(names, name)
	}
	for name, idx := range f.Indices {
		if _, dup := f.Tensors[name]; dup {
			return nil, &ValidationError{
				Type: "invalid_name", Tensor: name, Details: "used by both a tensor and an index", Err: ErrInvalidTensorName,
			}
		}
		if len(idx) == 0 {
			return nil, fmt.Errorf("index %q is empty", name)
		}
		names = append(names, name)
	}
	for _, name := range names {
		if err := ValidateTensorName(name); err != nil {
			return nil, err
		}
	}
	sort.Strings(names)
	return names, nil
}

func int64Shape(shape []int) []int64 {
	out := make([]int64, len(shape))
	for i, dim := range shape {
		out[i] = int64(dim)
	}
	return out
}
