// Package api serves the kiosk over HTTP and provides the matching client
// used by the CLI.
//
// Every route lives under /api and speaks JSON, except the checkout QR code
// which is a PNG. When api.token is configured each request must carry
// "Authorization: Bearer <token>". Responses echo an X-Request-ID header that
// also appears on every log line written while serving the request.
package api
