/*
Package config loads the bridged daemon configuration from a YAML file:
domain identity, broker address, election timing, keep-alive watchdog
period, optional static topology and observability settings. Timing values
are configuration rather than constants so emulation runs can compress them.
*/
package config
