// Package device runs appliances.
//
// Each Device owns a field registry, a raw register cache and an engine,
// and serialises every operation on them through one goroutine:
//
//	MQTT rx  ─┐
//	API/hub  ─┼─▶  ops queue  ─▶  actor goroutine  ─▶  engine  ─▶  publishers
//	ticker   ─┘                                       │
//	                                                  └─▶  raw sender
//
// DeliverRaw enqueues a register report and returns. SetProperty enqueues
// a write and waits for its result. Devices share nothing, so separate
// appliances are processed in parallel.
//
// The Manager indexes devices by ID and fans calls out to them. Register
// snapshots are saved through a SnapshotRepository on the actor's own
// ticker, and restored (then re-derived) when the device starts.
//
// # Usage
//
//	model, _ := models.Lookup("RAC_056905_WW")
//	dev, err := device.New(device.Options{
//	    ID:         "ac-living",
//	    Name:       "Living Room AC",
//	    Model:      model,
//	    Publisher:  device.FanOut{hubBridge, history},
//	    Sender:     transport,
//	    Repository: device.NewSQLiteSnapshotRepository(db.DB),
//	})
//	mgr := device.NewManager()
//	mgr.Add(dev)
//	mgr.Start(ctx)
//	defer mgr.Stop(ctx)
package device
