package graph

import (
	"time"
)

// Collection is a deferred, ordered sequence of images.
type Collection struct {
	node *Node
}

// CollectionOf wraps a node that evaluates to an image collection.
func CollectionOf(n *Node) Collection {
	return Collection{node: n}
}

// LoadCollection references a stored collection by id.
func LoadCollection(id string) Collection {
	return Collection{node: Invoke(FnCollectionLoad, map[string]*Node{"id": Constant(id)})}
}

// FromImages builds a collection from explicit images.
func FromImages(images ...Image) Collection {
	items := make([]*Node, len(images))
	for i, img := range images {
		items[i] = img.node
	}
	return Collection{node: Invoke(FnCollectionFromImages, map[string]*Node{"images": Array(items...)})}
}

// FromImageList builds a collection from a node that evaluates to a list of
// images, such as the matches saved by a join.
func FromImageList(list *Node) Collection {
	return Collection{node: Invoke(FnCollectionFromImages, map[string]*Node{"images": list})}
}

// Node returns the underlying graph node.
func (c Collection) Node() *Node { return c.node }

// IsZero reports whether the handle is unset.
func (c Collection) IsZero() bool { return c.node == nil }

// Filter keeps images matching f.
func (c Collection) Filter(f Filter) Collection {
	return Collection{node: Invoke(FnCollectionFilter, map[string]*Node{"collection": c.node, "filter": f.node})}
}

// FilterDate keeps images whose acquisition time is in [start, end).
func (c Collection) FilterDate(start, end time.Time) Collection {
	return c.Filter(Date(start, end))
}

// FilterBounds keeps images whose footprint intersects g.
func (c Collection) FilterBounds(g Geometry) Collection {
	return c.Filter(Intersects(g))
}

// Map applies fn to every image. fn must be pure: it is called more than
// once while the function definition is built.
func (c Collection) Map(fn func(Image) Image) Collection {
	body := lambda(func(arg *Node) *Node { return fn(ImageOf(arg)).node })
	return Collection{node: Invoke(FnCollectionMap, map[string]*Node{"collection": c.node, "baseAlgorithm": body})}
}

// Select keeps the named bands of every image.
func (c Collection) Select(bands ...string) Collection {
	return c.Map(func(img Image) Image { return img.Select(bands...) })
}

// Merge concatenates o after c.
func (c Collection) Merge(o Collection) Collection {
	return Collection{node: Invoke(FnCollectionMerge, map[string]*Node{"collection1": c.node, "collection2": o.node})}
}

// Sort orders images by a property. The sort is stable.
func (c Collection) Sort(key string, ascending bool) Collection {
	return Collection{node: Invoke(FnCollectionSort, map[string]*Node{
		"collection": c.node,
		"key":        Constant(key),
		"ascending":  Constant(ascending),
	})}
}

// Distinct drops images whose property tuple was already seen, keeping the
// first occurrence.
func (c Collection) Distinct(props ...string) Collection {
	return Collection{node: Invoke(FnCollectionDistinct, map[string]*Node{
		"collection": c.node,
		"properties": Strings(props...),
	})}
}

// First returns the first image.
func (c Collection) First() Image {
	return Image{node: Invoke(FnCollectionFirst, map[string]*Node{"collection": c.node})}
}

// Mosaic composites the collection per pixel; later images win.
func (c Collection) Mosaic() Image {
	return Image{node: Invoke(FnCollectionMosaic, map[string]*Node{"collection": c.node})}
}

// Reduce combines the collection per band and pixel, ignoring masked pixels.
func (c Collection) Reduce(reducer string) Image {
	return Image{node: Invoke(FnCollectionReduce, map[string]*Node{
		"collection": c.node,
		"reducer":    Constant(reducer),
	})}
}

// Sum is Reduce(ReducerSum).
func (c Collection) Sum() Image { return c.Reduce(ReducerSum) }

// Mean is Reduce(ReducerMean).
func (c Collection) Mean() Image { return c.Reduce(ReducerMean) }

// SaveAll joins secondary onto primary: every primary image gains a property
// named key holding the list of secondary images matching condition, ordered
// by the secondary property ordering.
func SaveAll(primary, secondary Collection, condition Filter, key, ordering string, ascending bool) Collection {
	return Collection{node: Invoke(FnJoinSaveAll, map[string]*Node{
		"primary":    primary.node,
		"secondary":  secondary.node,
		"condition":  condition.node,
		"matchesKey": Constant(key),
		"ordering":   Constant(ordering),
		"ascending":  Constant(ascending),
	})}
}
