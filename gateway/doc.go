// Package gateway defines the HTTP surface of the daemon: its configuration
// and the endpoint interfaces it serves. The implementation lives in
// gateway/http.
//
// Routes:
//
//	POST /fifo              write the body as a producer session
//	GET  /fifo?n=N          one read of up to N bytes as a consumer session
//	GET  /fifo/ws?role=R    long-lived fifo session, binary frames
//	GET  /modtimer          one drained batch as decimal text
//	GET  /modtimer/ws       every batch for the life of the connection
//	GET  /modconfig         current tunables
//	POST /modconfig         apply "key value" lines
//	GET  /stats             endpoint statistics
//	GET  /health            aggregated component health
package gateway
