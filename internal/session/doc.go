// Package session is the Session Engine's SessionService (§4.7): the
// thin, HTTP-facing wrapper around Storage and the EngineLoop. It owns
// no session state of its own — every read is a Storage call, every
// write serializes through Storage, and a submitted prompt is handed
// straight to internal/engine.Engine, which owns the turn.
package session
