package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-specstore/internal/device"
)

// MeasurementOperations is the measurement written for every repository
// operation.
const MeasurementOperations = "specstore_operations"

// WritePointWithTime queues a point for the next batch. It is a no-op once
// the client is closed.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.isOpen() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

// PointWriter is the write side of Client.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time)
}

// OperationObserver records repository operations as points in
// MeasurementOperations. It implements device.Observer.
//
// Each point is tagged with the operation and its outcome and carries the
// duration in milliseconds and a failed flag.
type OperationObserver struct {
	w    PointWriter
	tags map[string]string
	now  func() time.Time
}

var _ device.Observer = (*OperationObserver)(nil)

// NewOperationObserver creates an observer writing through w. Extra tags
// (for example a host or site) are added to every point.
func NewOperationObserver(w PointWriter, tags map[string]string) *OperationObserver {
	return &OperationObserver{w: w, tags: tags, now: time.Now}
}

// ObserveOperation writes one point.
func (o *OperationObserver) ObserveOperation(op string, err error, elapsed time.Duration) {
	tags := make(map[string]string, len(o.tags)+2)
	for k, v := range o.tags {
		tags[k] = v
	}
	tags["operation"] = op
	tags["outcome"] = device.Outcome(err)

	fields := map[string]any{
		"duration_ms": float64(elapsed) / float64(time.Millisecond),
		"failed":      err != nil,
	}
	o.w.WritePointWithTime(MeasurementOperations, tags, fields, o.now())
}
