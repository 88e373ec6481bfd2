package nrblib

import "errors"

var (
	// configuration errors
	ErrNoAOI            = errors.New("no AOI geometry provided")
	ErrMixedEPSG        = errors.New("selected tiles cover multiple UTM zones")
	ErrMissingWaterMask = errors.New("external water body mask could not be found")

	// invalid arguments
	ErrBadOutFormat          = errors.New("out format can only be single-layer or multi-layer")
	ErrOperandCount          = errors.New("wrong operand count for pixel function")
	ErrAmbiguousPolarization = errors.New("ambiguous polarization code")
	ErrNoTimestamp           = errors.New("no start timestamp token in filename")

	// consistency errors
	ErrSceneMismatch  = errors.New("scene attributes mismatch")
	ErrNoSharedBorder = errors.New("scenes share no border")
	ErrMaskPairing    = errors.New("validity masks cannot be paired with scenes")

	// gdal errors
	ErrGdalDriverOpen = errors.New("gdal driver open err")
	ErrInvalidWKT     = errors.New("invalid WKT")
	ErrInvalidTif     = errors.New("invalid tif")
	ErrTifReadFailed  = errors.New("tif read failed")
	ErrEmptyTile      = errors.New("no scene overlaps the tile")
	ErrTileNotFound   = errors.New("tile not found in grid")
)
