package graph

// Image is a deferred single raster with named bands and properties.
type Image struct {
	node *Node
}

// ImageOf wraps a node that evaluates to an image.
func ImageOf(n *Node) Image {
	return Image{node: n}
}

// LoadImage references a stored image by its full id.
func LoadImage(id string) Image {
	return Image{node: Invoke(FnImageLoad, map[string]*Node{"id": Constant(id)})}
}

// ConstantImage is an unmasked single-band image named "constant".
func ConstantImage(v float64) Image {
	return ConstantImageOf(Num(v))
}

// ConstantImageOf builds a constant image from a deferred scalar.
func ConstantImageOf(v Number) Image {
	return Image{node: Invoke(FnImageConstant, map[string]*Node{"value": v.node})}
}

// Node returns the underlying graph node.
func (i Image) Node() *Node { return i.node }

// IsZero reports whether the handle is unset.
func (i Image) IsZero() bool { return i.node == nil }

// Select keeps the named bands in the given order.
func (i Image) Select(bands ...string) Image {
	return Image{node: Invoke(FnImageSelect, map[string]*Node{
		"input":         i.node,
		"bandSelectors": Strings(bands...),
	})}
}

// Rename replaces band names positionally.
func (i Image) Rename(names ...string) Image {
	return Image{node: Invoke(FnImageRename, map[string]*Node{
		"input": i.node,
		"names": Strings(names...),
	})}
}

// AddBands appends src's bands to i. Properties of i are kept.
func (i Image) AddBands(src Image) Image {
	return Image{node: Invoke(FnImageAddBands, map[string]*Node{"dstImg": i.node, "srcImg": src.node})}
}

func (i Image) binary(fn string, o Image) Image {
	return Image{node: Invoke(fn, map[string]*Node{"image1": i.node, "image2": o.node})}
}

// Add is per-pixel i + o.
func (i Image) Add(o Image) Image { return i.binary(FnImageAdd, o) }

// Subtract is per-pixel i - o.
func (i Image) Subtract(o Image) Image { return i.binary(FnImageSubtract, o) }

// Multiply is per-pixel i * o.
func (i Image) Multiply(o Image) Image { return i.binary(FnImageMultiply, o) }

// Divide is per-pixel i / o; pixels where o is zero are masked.
func (i Image) Divide(o Image) Image { return i.binary(FnImageDivide, o) }

// Eq is 1 where i == o and 0 elsewhere.
func (i Image) Eq(o Image) Image { return i.binary(FnImageEq, o) }

// Mask returns the validity mask of i: 1 for valid pixels, 0 for masked.
func (i Image) Mask() Image {
	return Image{node: Invoke(FnImageMask, map[string]*Node{"image": i.node})}
}

// UpdateMask masks pixels of i where m is zero or masked.
func (i Image) UpdateMask(m Image) Image {
	return Image{node: Invoke(FnImageUpdateMask, map[string]*Node{"image": i.node, "mask": m.node})}
}

// Unmask fills masked pixels with v.
func (i Image) Unmask(v float64) Image {
	return Image{node: Invoke(FnImageUnmask, map[string]*Node{"input": i.node, "value": Constant(v)})}
}

// ToInt32 casts every band to a 32-bit integer type.
func (i Image) ToInt32() Image {
	return Image{node: Invoke(FnImageToInt32, map[string]*Node{"value": i.node})}
}

// ToFloat casts every band to floating point.
func (i Image) ToFloat() Image {
	return Image{node: Invoke(FnImageToFloat, map[string]*Node{"value": i.node})}
}

// Resample sets the resampling kernel used when the image is reprojected.
func (i Image) Resample(mode string) Image {
	return Image{node: Invoke(FnImageResample, map[string]*Node{"image": i.node, "mode": Constant(mode)})}
}

// Set attaches a property. value may be a literal, a *Node or a handle.
func (i Image) Set(key string, value any) Image {
	return Image{node: Invoke(FnElementSet, map[string]*Node{
		"object": i.node,
		"key":    Constant(key),
		"value":  ValueOf(value),
	})}
}

// SetMulti attaches several properties at once.
func (i Image) SetMulti(props map[string]any) Image {
	vals := make(map[string]*Node, len(props))
	for k, v := range props {
		vals[k] = ValueOf(v)
	}
	return Image{node: Invoke(FnElementSetMulti, map[string]*Node{
		"object":     i.node,
		"properties": Dict(vals),
	})}
}

// Get reads a property.
func (i Image) Get(key string) *Node {
	return Invoke(FnElementGet, map[string]*Node{"object": i.node, "property": Constant(key)})
}

// GetNumber reads a numeric property.
func (i Image) GetNumber(key string) Number {
	return NumberOf(i.Get(key))
}

// Model runs the physical ET model on a source image and returns an image
// holding the requested variables as bands, with the source's properties.
func Model(src Image, variables []string, args *Node) Image {
	if args == nil {
		args = Dict(nil)
	}
	return Image{node: Invoke(FnModelCompute, map[string]*Node{
		"image":     src.node,
		"variables": Strings(variables...),
		"arguments": args,
	})}
}

// ValueOf converts handles and literals to nodes.
func ValueOf(v any) *Node {
	switch t := v.(type) {
	case *Node:
		return t
	case Image:
		return t.node
	case Collection:
		return t.node
	case Filter:
		return t.node
	case Geometry:
		return t.node
	case Number:
		return t.node
	default:
		return Constant(v)
	}
}
