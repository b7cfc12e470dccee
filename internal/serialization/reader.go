package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/born-ml/labelattn/internal/tensor"
)

// ReadFile reads a SafeTensors file. F32 tensors are placed on device.
func ReadFile(path string, device tensor.Device) (*File, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	f, err := Decode(file, device)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Decode reads a SafeTensors stream. F32 tensors are placed on device,
// rank-1 I64 tensors become Indices.
func Decode(r io.Reader, device tensor.Device) (*File, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header, metadata, err := parseHeader(bytes.TrimRight(headerBytes, " "))
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if err := ValidateHeader(header, int64(len(data))); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if stored, ok := metadata[ChecksumKey]; ok {
		if err := ValidateChecksum(data, stored); err != nil {
			return nil, err
		}
	}

	f := &File{
		Tensors:  make(map[string]*tensor.RawTensor),
		Indices:  make(map[string]Index),
		Metadata: metadata,
	}
	for name, info := range header {
		chunk := data[info.DataOffsets[0]:info.DataOffsets[1]]
		switch info.DType {
		case DTypeF32:
			raw, err := decodeF32(chunk, info.Shape, device)
			if err != nil {
				return nil, fmt.Errorf("tensor %q: %w", name, err)
			}
			f.Tensors[name] = raw
		case DTypeI64:
			if len(info.Shape) != 1 {
				return nil, fmt.Errorf("index %q: expected rank 1, got shape %v", name, info.Shape)
			}
			f.Indices[name] = decodeI64(chunk)
		}
	}
	return f, nil
}

// parseHeader splits the JSON header into tensor entries and metadata.
func parseHeader(headerJSON []byte) (map[string]TensorInfo, map[string]string, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &entries); err != nil {
		return nil, nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	metadata := make(map[string]string)
	header := make(map[string]TensorInfo, len(entries))
	for name, entry := range entries {
		if name == MetadataKey {
			if err := json.Unmarshal(entry, &metadata); err != nil {
				return nil, nil, fmt.Errorf("failed to parse metadata: %w", err)
			}
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(entry, &info); err != nil {
			return nil, nil, fmt.Errorf("failed to parse header entry %q: %w", name, err)
		}
		header[name] = info
	}
	return header, metadata, nil
}

func decodeF32(chunk []byte, shape []int64, device tensor.Device) (*tensor.RawTensor, error) {
	dims := make(tensor.Shape, len(shape))
	for i, dim := range shape {
		dims[i] = int(dim)
	}
	raw, err := tensor.NewRaw(dims, device)
	if err != nil {
		return nil, err
	}
	dst := raw.Data()
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(chunk[4*i:]))
	}
	return raw, nil
}

func decodeI64(chunk []byte) Index {
	out := make(Index, len(chunk)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(chunk[8*i:])) //nolint:gosec // G115: two's complement round trip
	}
	return out
}
