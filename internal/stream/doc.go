// Package stream implements the single-camera, multi-viewer MJPEG pipeline.
//
// Goroutine topology:
//   - CaptureLoop: producer. Captures from the camera into the inactive slot
//     of a fixed slot arena and publishes it to the FrameStore at a fixed rate.
//   - Scheduler: consumer. Serves the viewer at the front of the Registry the
//     latest published frame, then requeues it at the back. Its period is the
//     capture period divided by the number of active viewers.
//   - Acceptor: runs on the HTTP request goroutine. Registers a viewer and
//     wakes both tasks.
//
// Idle coordination: the Scheduler parks when the Registry is empty and the
// CaptureLoop parks when it sees the Scheduler parked. Only a successful
// Accept unparks them.
//
// Locking: FrameStore's mutex covers only the descriptor swap/copy. Network
// writes happen with no lock held; the slot being written to a viewer is
// leased, and the CaptureLoop never overwrites a leased slot.
package stream
