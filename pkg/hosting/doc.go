/*
Package hosting defines the callback contract between the communication
layer and the controller application that embeds it. The Application
interface inverts the dependency: the layer calls Promote/Demote on role
changes and asks the application for topology state, instead of reaching
into application tables.

StaticApp is a fixed-topology reference implementation used by the CLI and
by tests.
*/
package hosting
