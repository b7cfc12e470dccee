package tensor

import "fmt"

// Transpose permutes the axes of r and returns a contiguous copy.
// With no axes the order of all axes is reversed.
func Transpose(r *RawTensor, axes ...int) *RawTensor {
	shape := r.Shape()
	ndim := len(shape)
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: expected %d axes, got %d", ndim, len(axes)))
	}

	seen := make([]bool, ndim)
	perm := make([]int, ndim)
	outShape := make(Shape, ndim)
	for i, ax := range axes {
		ax = normalizeAxis(ax, ndim)
		if seen[ax] {
			panic(fmt.Sprintf("transpose: repeated axis %d in %v", ax, axes))
		}
		seen[ax] = true
		perm[i] = ax
		outShape[i] = shape[ax]
	}

	out, err := NewRaw(outShape, r.Device())
	if err != nil {
		panic(fmt.Sprintf("transpose: %v", err))
	}

	inStrides := shape.ComputeStrides()
	// permStrides[i] is the input stride walked when output axis i advances.
	permStrides := make([]int, ndim)
	for i, ax := range perm {
		permStrides[i] = inStrides[ax]
	}

	src, dst := r.Data(), out.Data()
	idx := make([]int, ndim)
	offset := 0
	for o := range dst {
		dst[o] = src[offset]
		// Odometer increment over the output index.
		for d := ndim - 1; d >= 0; d-- {
			idx[d]++
			offset += permStrides[d]
			if idx[d] < outShape[d] {
				break
			}
			offset -= permStrides[d] * idx[d]
			idx[d] = 0
		}
	}
	return out
}

// IndexSelect gathers the entries of dim listed in indices.
// The result has len(indices) entries along dim; indices may repeat.
func IndexSelect(r *RawTensor, dim int, indices []int) *RawTensor {
	shape := r.Shape()
	dim = normalizeAxis(dim, len(shape))
	size := shape[dim]
	for _, i := range indices {
		if i < 0 || i >= size {
			panic(fmt.Sprintf("index select: index %d out of range for dimension %d (size %d)", i, dim, size))
		}
	}

	outShape := shape.Clone()
	outShape[dim] = len(indices)
	out, err := NewRaw(outShape, r.Device())
	if err != nil {
		panic(fmt.Sprintf("index select: %v", err))
	}

	outer := 1
	for _, d := range shape[:dim] {
		outer *= d
	}
	inner := 1
	for _, d := range shape[dim+1:] {
		inner *= d
	}

	src, dst := r.Data(), out.Data()
	for o := 0; o < outer; o++ {
		srcBase := o * size * inner
		dstBase := o * len(indices) * inner
		for j, i := range indices {
			copy(dst[dstBase+j*inner:dstBase+(j+1)*inner], src[srcBase+i*inner:srcBase+(i+1)*inner])
		}
	}
	return out
}

// Expand repeats r n times along a new leading axis: [...] -> [n, ...].
func Expand(r *RawTensor, n int) *RawTensor {
	if n <= 0 {
		panic(fmt.Sprintf("expand: repeat count must be positive, got %d", n))
	}
	outShape := append(Shape{n}, r.Shape()...)
	out, err := NewRaw(outShape, r.Device())
	if err != nil {
		panic(fmt.Sprintf("expand: %v", err))
	}
	src, dst := r.Data(), out.Data()
	for i := 0; i < n; i++ {
		copy(dst[i*len(src):(i+1)*len(src)], src)
	}
	return out
}

// ConcatRaw joins raw tensors along dim. All other dimensions must match.
func ConcatRaw(dim int, rs ...*RawTensor) *RawTensor {
	if len(rs) == 0 {
		panic("concat: no tensors")
	}
	first := rs[0].Shape()
	dim = normalizeAxis(dim, len(first))

	outShape := first.Clone()
	outShape[dim] = 0
	for _, r := range rs {
		s := r.Shape()
		if len(s) != len(first) {
			panic(fmt.Sprintf("concat: rank mismatch: %v vs %v", first, s))
		}
		for i := range s {
			if i != dim && s[i] != first[i] {
				panic(fmt.Sprintf("concat: shape mismatch along dimension %d: %v vs %v", i, first, s))
			}
		}
		outShape[dim] += s[dim]
	}

	out, err := NewRaw(outShape, rs[0].Device())
	if err != nil {
		panic(fmt.Sprintf("concat: %v", err))
	}

	outer := 1
	for _, d := range first[:dim] {
		outer *= d
	}
	inner := 1
	for _, d := range first[dim+1:] {
		inner *= d
	}

	dst := out.Data()
	pos := 0
	for o := 0; o < outer; o++ {
		for _, r := range rs {
			n := r.Shape()[dim] * inner
			copy(dst[pos:pos+n], r.Data()[o*n:(o+1)*n])
			pos += n
		}
	}
	return out
}
