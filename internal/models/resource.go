package models

// ResourceType enumerates the fixed set of counted resources spec.md
// §4.8 names.
type ResourceType string

const (
	ResourceActiveDispatch ResourceType = "activeDispatch"
	ResourceHeapBytes      ResourceType = "heapBytes"
	ResourceCPUPercent     ResourceType = "cpuPct"
	ResourceDBConns        ResourceType = "dbConns"
)

// ResourceSnapshot is the read-only operator view of one resource
// counter: current usage against its limit.
type ResourceSnapshot struct {
	Type    ResourceType
	Current int64
	Limit   int64
}
