// Package fetch downloads subscription bodies.
//
// A Client follows redirects (http and https only), bounds every download
// by a timeout and a body size limit, and reports failures as *Error
// values wrapping a failure class such as ErrStatus or ErrTimeout. It can
// dial through an upstream SOCKS5 or HTTP proxy and, given a Cache, send
// conditional requests so unchanged subscriptions are not downloaded
// again.
package fetch
