// Package atlas is the control client for the zone audio processor.
//
// The processor speaks JSON-RPC 2.0 over a persistent TCP connection
// (port 5321). Each request is one JSON object terminated by CRLF:
//
//	{"jsonrpc":"2.0","method":"set","params":{"param":"ZoneGain_0","value":-20,"fmt":"val"},"id":12}
//
// Responses carry the same id; "update" notifications carry none.
//
// The package is layered:
//   - Decoder / EncodeRequest: stream framing
//   - Correlator: id allocation and response matching, one per connection
//   - ParameterDescriptor table: validation before any I/O
//   - Client: connection lifecycle, keep-alive, reconnect, get/set/bmp,
//     polled meter subscriptions
//
// A connection is declared dead after three consecutive unanswered
// requests (keep-alives included). The client then reconnects at a
// constant interval. Subscriptions belong to the connection that created
// them and are dropped with it.
package atlas
