// Copyright 2011 Andy Balholm. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package icap implements the wire protocol engine of an Internet Content
Adaptation Protocol (RFC 3507) server: request-line and header parsing,
Encapsulated-offset decoding, chunked body decoding with the ICAP "ieof"
preview extension, and response serialization.

The package does not itself dispatch requests to adaptation modules or run
a connection loop — see the sibling modifier, handler, worker and manager
packages for those layers. icap only turns bytes on a socket into a Request,
and a Response back into bytes.

Basic usage on an already-accepted net.Conn:

	br := bufio.NewReader(conn)
	req, err := icap.ReadRequest(br, icap.DefaultMaxHeaderBytes, conn.RemoteAddr().String())
	if err != nil {
		// ...
	}
	resp := icap.NewResponse(icap.StatusNoContent)
	resp.WriteTo(conn, istag, "bitz-icapd/1.0")
*/
package icap
