// Package influxdb provides InfluxDB connectivity for store telemetry.
//
// It wraps the official influxdb-client-go v2 library and records every
// repository operation as a point in the specstore_operations measurement.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	obs := influxdb.NewOperationObserver(client, map[string]string{"host": host})
//	repo := device.NewStoreRepository(store, ids, device.WithObserver(obs))
//
// Writes are batched and never block the repository. Write failures arrive
// asynchronously through SetOnError.
package influxdb
