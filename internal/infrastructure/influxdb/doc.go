// Package influxdb writes AV history to InfluxDB v2: audio meter readings,
// TV control outcomes, matrix routes and bridge state changes.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without history
//	}
//	defer client.Close()
//
//	client.WriteMeter("ZoneMeter_0", -18.5, time.Now())
//
// Points are batched (batch_size, flush_interval) and written in the
// background.
package influxdb
