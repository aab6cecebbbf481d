// Package gmail implements the mail side of the integration: building
// raw RFC 2822 messages for the Gmail send endpoint, decoding fetched
// message payloads (headers, bodies by MIME type, attachment metadata),
// and the gateway that orchestrates send/get/list with authentication
// and send logging.
package gmail
