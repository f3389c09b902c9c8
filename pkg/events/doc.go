// Package events is a small in-memory pub/sub broker. A Transaction
// invokes its handler callbacks synchronously as part of apply(), and
// additionally publishes the same lifecycle stages through a Broker
// for anything that wants to observe without being on the critical
// path: a progress bar, structured logging, metrics. Publish is
// non-blocking and delivery is best-effort — a slow or absent
// subscriber never affects whether a transaction succeeds.
package events
