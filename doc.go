// Package plenum provides a multi-agent conversation engine.
//
// Teams of LLM-backed agents take turns on a shared session, selected by a
// weighted speaker selector, with pluggable service layers such as:
//
//   - orchestrator – turn loop, streaming frames and termination handling
//   - runner       – queue-driven background execution of session tasks
//   - tool         – typed tool registry, schema derivation and dispatch
//   - approval     – optional human-in-the-loop gating of tool calls
//   - rag          – retrieval of stored memories into the agent prompt
//
// Plenum is designed to be embedded in host applications.  End-users
// typically interact with the engine via the high-level Service façade
// exposed by the root package:
//
//	srv, _ := plenum.New(
//	    plenum.WithProvider(llm),
//	    plenum.WithTeams(team),
//	)
//	_ = srv.Start(ctx)
//	session, _ := srv.NewSession(ctx, "alice", team.Name)
//	_ = srv.PostMessage(ctx, session.ID, "hello")
//
// The same wiring backs the WebSocket streaming server started with
// srv.Serve.  For more details see the README and individual sub-packages.
package plenum
