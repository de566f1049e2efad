/*
Package comms implements the controller communication layer: everything a
domain controller instance says to its peers' root coordination point and
hears back from it.

	┌───────────────── CONTROLLER INSTANCE ─────────────────┐
	│                                                        │
	│  Hosting Application (topology, TE decisions)          │
	│        ▲ Promote/Demote         │ topology, threshold  │
	│        │                        ▼                      │
	│  ┌────────────────────── Layer ─────────────────────┐  │
	│  │ role observer  │ send gating │ path cache        │  │
	│  │ keep-alive watchdog │ rebuild-and-retry sender   │  │
	│  └───────┬──────────────────────────────┬───────────┘  │
	│          │ owns                         │              │
	│   Election Engine                broker Conns          │
	└──────────┼──────────────────────────────┼──────────────┘
	           ▼                              ▼
	   c.<domain>.discover          root.c.* / c.<cid> / c.all

The layer owns and starts the election engine. A dedicated observer worker
watches the engine's role signal, calls the application's Promote/Demote
callbacks and adjusts send gating: while the instance is a slave every
outbound send except the engine's own keep-alives is a no-op, so at most one
instance per domain talks to the root. A resettable watchdog re-sends the
domain ID after a period of outbound silence.

Inter-domain path instructions from the root are cached per host pair; local
egress moves and upstream ingress moves patch the cached record in place (a
two-element swap between the primary segment and the matching alternate) and
forward the result to the root. Untracked keys are logged and abandoned by
design.
*/
package comms
