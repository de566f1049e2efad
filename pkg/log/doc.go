/*
Package log provides structured logging for bridged built on zerolog.

A single global logger is initialized once at process start via Init and
narrowed into per-component child loggers with WithComponent, WithDomainID
and WithInstanceID. Election-timing events additionally carry an explicit
wall-clock marker (Trace) so role changes and peer failures can be
reconstructed offline from the log stream.
*/
package log
