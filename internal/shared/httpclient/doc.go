// Package httpclient builds the resty clients used for the weather and email
// providers: base URL, a 10s timeout, no retries, and trace header propagation.
package httpclient
