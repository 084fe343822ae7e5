// Package mock provides scripted playback controllers for testing.
package mock

import (
	"context"
	"sync"
)

// Controller implements controller.Muter and controller.Dimmer with
// scripted errors and call recording. Safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	// Scripted errors returned by the corresponding method.
	MuteErr    error
	UnmuteErr  error
	DimErr     error
	RestoreErr error

	// Call counts, recorded regardless of the scripted error.
	MuteCalls    int
	UnmuteCalls  int
	DimCalls     int
	RestoreCalls int
}

// Mute implements controller.Muter.
func (c *Controller) Mute(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MuteCalls++
	return c.MuteErr
}

// Unmute implements controller.Muter.
func (c *Controller) Unmute(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.UnmuteCalls++
	return c.UnmuteErr
}

// Dim implements controller.Dimmer.
func (c *Controller) Dim(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DimCalls++
	return c.DimErr
}

// Restore implements controller.Dimmer.
func (c *Controller) Restore(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RestoreCalls++
	return c.RestoreErr
}

// Reset clears all recorded calls and scripted errors.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MuteErr, c.UnmuteErr, c.DimErr, c.RestoreErr = nil, nil, nil, nil
	c.MuteCalls, c.UnmuteCalls, c.DimCalls, c.RestoreCalls = 0, 0, 0, 0
}
