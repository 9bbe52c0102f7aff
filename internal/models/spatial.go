package models

// SpatialStats is the read-only operator snapshot of the grid index:
// cell count, total live drivers, mean drivers per cell.
type SpatialStats struct {
	Cells       int
	Drivers     int
	MeanPerCell float64
}
