/*
Package paychan implements the receiver side bookkeeping of an off-chain
payment channel.

A payment channel is opened and funded on a ledger. Afterwards the sender
authorizes ever growing amounts by signing claims off the chain. Each claim
states the total amount the receiver may withdraw from the channel, so only
the latest accepted claim matters and every new claim must be greater than
the previous one.

This package provides the deterministic claim encoding and its signature
verification, the durable per-channel Ledger that records the highest
accepted claim together with a bounded claim history, and the finalization
Policy that tells when the accumulated off-chain value should be settled on
the chain.
*/
package paychan
