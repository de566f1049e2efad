/*
Package election implements the per-domain leader election protocol: every
controller instance broadcasts keep-alives carrying its instance ID and role
on the domain discovery subject, and the instance with the lowest ID becomes
master.

# Protocol

	1. On start the engine advertises itself, sends a find broadcast so the
	   group resyncs its keep-alive timers, and opens an initiation window.
	2. When the window closes the instance becomes master if no peers are
	   known, or if no peer claims master and the local ID is lowest;
	   otherwise it becomes slave. Hearing a master claim during the window
	   ends it early on the slave path.
	3. Keep-alives replenish a per-peer liveness credit; every timeout tick
	   (half the keep-alive interval) consumes one credit. A peer at zero is
	   purged, and if it was the master the local instance promotes itself
	   when its ID is now lowest.
	4. A received keep-alive carrying the local instance ID is a collision:
	   the local ID is regenerated unless both sides are slaves, in which
	   case the side whose opaque session token sorts higher regenerates.

There is no renegotiation phase and no voluntary master step-down; failures
degrade to a stale role at worst, never an error surfaced to the hosting
application. Role changes set a level-triggered Signal that the observer
clears after handling.
*/
package election
