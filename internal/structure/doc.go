// Package structure is the depthcore capture adapter core.
//
// It sits between a capture.Layer, whose callbacks arrive on a background
// goroutine owned by the vendor SDK, and a single consumer goroutine that
// drains the newest frames once per tick.
//
// # Architecture
//
//	capture.Layer goroutine(s)
//	        │ OnEvent / OnSample (never blocks)
//	        ▼
//	┌──────────────────┐  bounded inbox   ┌──────────────────┐
//	│      Router      │ ───────────────▶ │ dispatch goroutine│
//	│ (router.go)      │  drop on full    │ routing table     │
//	└──────────────────┘                  └────────┬─────────┘
//	                                               │ serial → Device
//	                                               ▼
//	┌──────────────────┐   Write (lock)   ┌──────────────────┐
//	│     Device       │ ───────────────▶ │   FrameBuffer    │
//	│ (device.go)      │ ◀─────────────── │ (framebuffer.go) │
//	└──────────────────┘   Drain (lock)   └──────────────────┘
//	        ▲
//	        │ Update() once per tick
//	   UpdateLoop (update.go)
//
// # Key Types
//
//   - Manager: owns the layer and the Router, maps serials to Devices
//   - Device: application-facing handle for one sensor
//   - Router: capture.Delegate with an explicit routing table
//   - FrameBuffer: latest-wins frame cache with dirty flags
//   - UpdateLoop: the consumer tick
//
// # Usage
//
//	mgr := structure.NewManager(layer, structure.WithLogger(log))
//	if err := mgr.Initialize(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Close()
//
//	dev := structure.NewDevice(mgr)
//	settings := capture.DefaultSettings()
//	settings.Serial = "ST-0001"
//	if !dev.Configure(ctx, settings) {
//	    return errors.New("configure failed")
//	}
//	dev.Start(0) // start as soon as the sensor reports Ready
//
//	loop := structure.NewUpdateLoop(mgr, 33*time.Millisecond)
//	loop.OnFrame(func(d *structure.Device) { ... })
//	go loop.Run(ctx)
//
// # Thread Safety
//
// Device control methods may be called from any goroutine. Update must be
// called from a single goroutine. Delegate callbacks never block: they
// enqueue onto the Router inbox and return.
package structure
