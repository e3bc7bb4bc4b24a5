// Package transport parses endpoint addresses and keeps the scheme to
// Transport registry used by the facade. Concrete transports live in
// subpackages (transport/zmq).
package transport
