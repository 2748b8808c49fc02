// Package mqtt provides MQTT client connectivity for the specification
// store.
//
// The client is publish-only. It reconnects automatically and registers a
// will message so the broker marks the store offline if it drops.
//
// # Topics
//
//	specstore/core/specification/{token}/{event}   lifecycle events
//	specstore/system/status                        retained online/offline
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	repo := device.NewStoreRepository(store, ids,
//	    device.WithEventPublisher(mqtt.NewEventPublisher(client, byte(cfg.MQTT.QoS))),
//	)
//
// TLS should be enabled (cfg.Broker.TLS=true) outside local development.
package mqtt
