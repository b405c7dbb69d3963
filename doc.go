// Package slop exposes the Go APIs behind slopd, a capability-scoped gateway
// that serves a small standardized surface (chat, tools, memory, resources,
// payments) over HTTP with three chat transports: synchronous JSON,
// Server-Sent Events, and WebSocket.
//
// # Running a server
//
// The server listens on the network specified by Config.ListenProto (default
// "tcp") and address Config.Listen.
//
//	cfg := slop.Config{Listen: ":5000"}
//	srv, err := slop.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go func() {
//	    if err := srv.Start(); err != nil {
//	        log.Fatalf("slopd: %v", err)
//	    }
//	}()
//	defer func() {
//	    if err := srv.Shutdown(context.Background()); err != nil {
//	        log.Printf("slopd shutdown: %v", err)
//	    }
//	}()
//
// # Scopes
//
// Every request is authorized against comma-separated capability patterns
// supplied in the X-SLOP-SCOPE header (or the scope query parameter for
// transports where headers are impractical). Patterns are dot-separated:
// resource, optional identifier, permission. Wildcards cover either the whole
// resource (chat.*) or one identifier (chat.1234.*); a two-segment pattern
// such as memory.read grants the permission across all identifiers. Safe
// tools are additionally executable under tools.safe.* grants.
//
// # Embedding
//
// Server.Handler returns the gateway's http.Handler for mounting inside an
// existing mux, and NewTestServer starts a fully wired instance on an
// ephemeral port for tests.
//
// # Chat generation
//
// Replies come from a chat.Generator. The default synthetic generator echoes
// the caller's last message, which keeps the wire contract testable without a
// model; bridge a real model with WithGenerator.
package slop
