package pointcloud

import "errors"

var (
	errMissingCoordinateColumn = errors.New("pointcloud: x/y column required for spatial operations")
	errNeighborsColumnMissing  = errors.New("pointcloud: neighbors=true requires a neighbors column")
	errNegativeStep            = errors.New("pointcloud: sub-range filter step must be positive")
)
