package nrblib

const (
	FILE_EXT_TIF  = ".tif"
	FILE_EXT_VRT  = ".vrt"
	FILE_EXT_JSON = ".json"

	KML_DRIVER_NAME   = "KML"
	GTIFF_DRIVER_NAME = "GTiff"
	COG_DRIVER_NAME   = "COG"

	UNIVERSAL_SRID = 4326

	// class codes of the fused data mask
	MASK_NOT_MASKED     = 0
	MASK_LAYOVER        = 1
	MASK_SHADOW         = 2
	MASK_LAYOVER_SHADOW = 3
	MASK_OCEAN_WATER    = 4
	MASK_NODATA         = 255

	OUT_FORMAT_MULTI_LAYER  = "multi-layer"
	OUT_FORMAT_SINGLE_LAYER = "single-layer"

	// attribute fields of the tiling grid KML
	KML_FIELD_NAME = "Name"
	KML_FIELD_DESC = "Description"

	// timestamp token embedded in per-scene mask filenames
	SCENE_TIMESTAMP_LAYOUT = "20060102T150405"

	TMP_VRT = "nrb_%s.vrt"
)

var (
	DefaultOverviews     = []int{2, 4, 9, 18, 36}
	DefaultOvrResampling = "AVERAGE"
)
