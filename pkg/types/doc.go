/*
Package types defines the shared data model for the bridged coordination
layer: election roles and peer records, inter-domain path records with their
primary/alternate segment ordering, the unknown-link table entries exchanged
with the root controller, and attached-host descriptions.

The package is deliberately dependency free so every other package can import
it without cycles.
*/
package types
