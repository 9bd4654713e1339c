// Package relay forwards drained pipeline batches to NATS.
//
// A Relay claims the pipeline's only consumer slot for as long as Run is
// active and publishes each batch it reads as JSON:
//
//	{"session":"<uuid>","seq":1,"values":[12,250,7],"time":"..."}
//
// seq increases by one per batch for the life of the Relay. Publishing is
// retried with pkg/retry; a batch that still fails is dropped and counted.
package relay
