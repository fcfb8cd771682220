// Package influxdb records per-frame sequence tester metrics in InfluxDB.
//
// Every packed frame produces one seqtester_frame point tagged by camera and
// sequence flag, with the global image number, event count, busy device
// count, packed size and number of pack attempts as fields. Dashboards use
// these to spot frames whose history grows unexpectedly or that needed a
// larger pack buffer.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics are optional
//	}
//	defer client.Close()
//
//	client.WriteFrameMetrics(influxdb.FrameMetrics{Camera: "Cam1", Events: 3}, time.Now())
//
// Writes are non-blocking and batched (batch_size, flush_interval).
package influxdb
