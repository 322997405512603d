package control

import "context"

// Elector is the pluggable seam for leader election and peer
// discovery, both explicitly out of scope for the core protocol
// (spec §1: "Transport discovery / host naming... referenced only by
// the interfaces the core consumes"). A real deployment supplies one
// backed by whatever discovery mechanism it has (e.g. an mDNS
// advertiser, a lock service, or a static configuration file); this
// package ships only the interface and a StaticElector fixture for
// tests and single-process demos.
type Elector interface {
	// Run drives elections until ctx is cancelled, calling
	// onLeader/onFollower/onConnecting as the role changes.
	Run(ctx context.Context, onLeader func(), onFollower func(address string), onConnecting func()) error
}

// StaticElector assigns a fixed role once and never changes it,
// useful for tests and for a single-leader/single-follower demo
// deployment that has no discovery mechanism at all.
type StaticElector struct {
	Leader         bool
	FollowerDialTo string
}

// Run implements Elector by immediately calling onLeader or
// onFollower exactly once, then blocking until ctx is cancelled.
func (s StaticElector) Run(ctx context.Context, onLeader func(), onFollower func(address string), onConnecting func()) error {
	if s.Leader {
		onLeader()
	} else {
		onFollower(s.FollowerDialTo)
	}
	<-ctx.Done()
	return ctx.Err()
}
