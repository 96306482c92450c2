/*
Package paystream defines the shared building blocks of the off-chain payment
channel streaming core: time representation, clocks and version information.

A sender streams value to a receiver by signing claims of monotonically
increasing amount (x/stream Signer). The receiver verifies every claim and
records the highest accepted one in a durable ledger (x/stream Validator and
x/paychan Ledger). The ledger is settled on-chain only when the finalization
policy recommends it (x/paychan Policy, x/stream Settler).
*/
package paystream
