// Package booking runs travel-booking agent workflows.
//
// A run takes a free-text travel request through a roster of workers
// (Research, Policy, Budget, Optimizer, Booking) using one of four
// topologies and streams ordered progress events to the caller. Sequential
// and handoff runs may pause after the policy review until a human decision
// arrives, or approve themselves after a timeout.
//
//	srv, _ := booking.New()
//	run, _ := srv.StartRun(ctx, &booking.RunRequest{Request: "Seattle to New York", Topology: "sequential"})
//	for evt := range run.Events {
//		fmt.Println(evt.Kind, evt.Worker, evt.Summary)
//	}
package booking
