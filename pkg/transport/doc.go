/*
Package transport defines the narrow broker contract the coordination layer
depends on: a Dialer that opens Conns, Conns that publish to and subscribe
on dot-separated subjects, and Subscriptions that expose an inbound channel
plus an opaque per-subscription identity token.

Two bindings are provided:

  - Broker, an in-process implementation used by tests and single-process
    emulation. Fan-out is non-blocking with per-subscriber buffers; a full
    subscriber is skipped rather than blocking the publisher.
  - NATSDialer, the production binding over a NATS server.

Send and receive paths are expected to use independent Conns, so a send-side
failure can be recovered by rebuilding just that connection.
*/
package transport
