// Package serialization reads and writes SafeTensors files.
//
// A SafeTensors file is laid out as:
//
//	[8 bytes: header size N (uint64 LE)]
//	[N bytes: JSON header, space padded to 8-byte alignment]
//	[tensor data: little-endian, tensors back to back in name order]
//
// The header maps tensor names to {dtype, shape, data_offsets}; the optional
// "__metadata__" entry holds string metadata. Two dtypes are supported:
// F32 for parameters and embeddings, I64 for index tensors such as the label
// to category map.
//
// Files written here carry a SHA-256 of the data section in the metadata
// under "checksum"; readers verify it when present.
//
// Example usage:
//
//	// Save a state dict
//	f := &serialization.File{Tensors: att.StateDict()}
//	if err := serialization.WriteFile("params.safetensors", f); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Load it back
//	f, err := serialization.ReadFile("params.safetensors", tensor.CPU)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = att.LoadStateDict(f.Tensors)
package serialization
