/*
Package stream implements value streaming over a payment channel.

The sending side runs a Signer that accrues value at a fixed rate per whole
second and signs cumulative claims on demand. The receiving side runs a
Validator that checks every incoming claim against the channel ledger and
records it when accepted. A Settler periodically consults the finalization
policy and submits the latest accepted claim to the chain through the
Backend.

Service ties it all together and keeps track of the streaming sessions of
a process, each addressed by a random handle.
*/
package stream
