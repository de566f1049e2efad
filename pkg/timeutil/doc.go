/*
Package timeutil provides the two timer shapes the coordination layer runs
on: Recurring, a periodic task with explicit Reset/Stop ownership, and
Watchdog, a resettable one-shot inactivity timer.
*/
package timeutil
