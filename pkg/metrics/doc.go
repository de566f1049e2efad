/*
Package metrics exposes Prometheus collectors for the election engine and
communication layer: role and peer gauges, keep-alive counters, send
gating/retry counters and the inter-domain path cache size. Collectors are
package-level and registered at init, mirroring how the rest of the process
reaches them.
*/
package metrics
