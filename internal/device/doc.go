// Package device persists device specifications and their commands in a
// wide-column store.
//
// A specification is addressed by a caller-visible token. The token is
// mapped to a compact surrogate id by a uid.Registry, and the id is what
// appears in row keys, so all rows of one specification sit next to each
// other in key order.
//
// # Row layout
//
//	[0x01][id:4][0x01]            primary row: json, commandctr, deleted, claim
//	[0x01][id:4][0x02][cmd:4]     command row: json
//	[0x01][id:4][0xff]            end of the specification's rows
//
// The command counter starts at math.MaxInt64 and is decremented for every
// allocation, so a forward scan of command rows returns the newest first.
// The claim counter is raised once by every create; only the create that
// raises it to 1 may write the row.
//
// # Usage
//
//	ids := uid.NewRegistry(client, "specification")
//	repo := device.NewStoreRepository(client, ids,
//	    device.WithEventPublisher(publisher),
//	    device.WithObserver(device.Observers{promObserver, influxObserver}),
//	)
//	repo.SetLogger(log)
//
//	ctx = device.WithActor(ctx, "alice")
//	spec, err := repo.Create(ctx, &device.CreateRequest{
//	    Name:    "Thermostat v2",
//	    AssetID: "honeywell-t6",
//	})
//
// # Errors
//
// Absent tokens surface as ErrSpecificationNotFound from GetByToken and as
// an *Error with code InvalidSpecificationToken from Assert and from the
// operations built on it. Store failures wrap ErrStorage; rows with an
// unexpected shape wrap ErrIntegrity.
//
// # Thread Safety
//
// StoreRepository holds no mutable state of its own and is safe for
// concurrent use. Single-row atomicity comes from the store.
package device
