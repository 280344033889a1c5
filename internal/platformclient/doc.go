// Package platformclient is the outbound HTTP client used to call other
// services in the cluster.
//
// A [Client] is built per inbound request from that request's headers.
// Every call forwards the allow-listed identity headers (see package
// headers) so peers can authorize on behalf of the original caller.
// Responses outside 2xx become a [*StatusError]; anything else is handed
// back untouched and the caller owns the body.
package platformclient
