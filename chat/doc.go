// Package chat defines the protocol types and pure logic of the streaming
// chat session: SSE frame decoding, stream event interpretation, turn
// accumulation, and history reconciliation.
//
//   - [ServerSentEventsReader] turns a response body into raw record payloads.
//   - [Interpret] maps a record payload into typed [Event] values.
//   - [Turn].Apply folds events into an ordered list of [ContentBlock]s.
//   - [ReconcileHistory] rebuilds the same block structure from a persisted
//     message log, so history and live turns render identically.
//
// Network orchestration lives in [github.com/halyard-ai/halyard/client];
// everything in this package is side-effect free and synchronous.
package chat
