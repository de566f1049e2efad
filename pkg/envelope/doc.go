/*
Package envelope defines the wire messages exchanged between controller
instances and with the root controller.

Every payload travels as a single self-describing JSON envelope carrying a
"kind" discriminator plus kind-specific fields. Decode parses the envelope
exactly once at the transport boundary and hands back a typed Message;
unknown kinds surface as *UnknownKindError so receive loops can log and drop
them without crashing.
*/
package envelope
