package graph

// Server-side function names. Engines dispatch on these.
const (
	FnCollectionLoad       = "ImageCollection.load"
	FnCollectionFromImages = "ImageCollection.fromImages"
	FnCollectionFilter     = "Collection.filter"
	FnCollectionMap        = "Collection.map"
	FnCollectionMerge      = "Collection.merge"
	FnCollectionSort       = "Collection.sort"
	FnCollectionDistinct   = "Collection.distinct"
	FnCollectionFirst      = "Collection.first"
	FnCollectionMosaic     = "ImageCollection.mosaic"
	FnCollectionReduce     = "ImageCollection.reduce"
	FnJoinSaveAll          = "Join.saveAll"

	FnFilterDate                = "Filter.date"
	FnFilterIntersects          = "Filter.intersects"
	FnFilterEquals              = "Filter.equals"
	FnFilterNotEquals           = "Filter.notEquals"
	FnFilterLessThan            = "Filter.lessThan"
	FnFilterLessThanOrEquals    = "Filter.lessThanOrEquals"
	FnFilterGreaterThan         = "Filter.greaterThan"
	FnFilterGreaterThanOrEquals = "Filter.greaterThanOrEquals"
	FnFilterMaxDifference       = "Filter.maxDifference"
	FnFilterInList              = "Filter.inList"
	FnFilterAnd                 = "Filter.and"
	FnFilterOr                  = "Filter.or"
	FnFilterNot                 = "Filter.not"

	FnImageLoad       = "Image.load"
	FnImageConstant   = "Image.constant"
	FnImageSelect     = "Image.select"
	FnImageRename     = "Image.rename"
	FnImageAddBands   = "Image.addBands"
	FnImageAdd        = "Image.add"
	FnImageSubtract   = "Image.subtract"
	FnImageMultiply   = "Image.multiply"
	FnImageDivide     = "Image.divide"
	FnImageEq         = "Image.eq"
	FnImageMask       = "Image.mask"
	FnImageUpdateMask = "Image.updateMask"
	FnImageUnmask     = "Image.unmask"
	FnImageToInt32    = "Image.toInt32"
	FnImageToFloat    = "Image.toFloat"
	FnImageResample   = "Image.resample"

	FnElementGet      = "Element.get"
	FnElementSet      = "Element.set"
	FnElementSetMulti = "Element.setMulti"

	FnNumberAdd      = "Number.add"
	FnNumberSubtract = "Number.subtract"
	FnNumberMultiply = "Number.multiply"
	FnNumberDivide   = "Number.divide"
	FnNumberFloor    = "Number.floor"

	FnGeometry       = "Geometry"
	FnGeometryBuffer = "Geometry.buffer"

	// FnModelCompute runs the physical ET model on one source image.
	// Arguments: image, variables (array of names), arguments (dict).
	FnModelCompute = "Model.compute"
)

// Reducers accepted by ImageCollection.reduce.
const (
	ReducerSum  = "sum"
	ReducerMean = "mean"
)

// Well-known image properties.
const (
	PropIndex     = "system:index"
	PropID        = "system:id"
	PropTimeStart = "system:time_start"
	PropGeometry  = ".geo"
)
