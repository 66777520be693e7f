package server

import (
	"github.com/go-chi/chi/v5"
)

// routes builds the HTTP surface named in §6, plus the supplemented
// fork/revert/share/todo/diff/question endpoints SPEC_FULL.md adds.
func (s *Server) routes() {
	r := s.router

	r.Route("/global", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Route("/lease", func(r chi.Router) {
			r.Post("/acquire", s.leaseAcquire)
			r.Post("/renew", s.leaseRenew)
			r.Post("/release", s.leaseRelease)
		})
	})

	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)
	})

	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Get("/", s.getSession)
		r.Patch("/", s.updateSession)
		r.Delete("/", s.deleteSession)

		r.Post("/message", s.sendMessage)
		r.Post("/abort", s.abortSession)

		r.Post("/fork", s.forkSession)
		r.Post("/revert", s.revertSession)
		r.Post("/unrevert", s.unrevertSession)
		r.Post("/share", s.shareSession)
		r.Delete("/share", s.unshareSession)
		r.Get("/todo", s.getTodos)
		r.Get("/diff", s.getDiff)
	})

	r.Route("/question", func(r chi.Router) {
		r.Get("/", s.listQuestions)
		r.Post("/{requestID}/reply", s.replyQuestion)
		r.Post("/{requestID}/reject", s.rejectQuestion)
	})

	r.Post("/permission/{requestID}/reply", s.replyPermission)

	r.Get("/provider", s.listProviders)
	r.Put("/auth/{providerID}", s.setAuth)
	r.Delete("/auth/{providerID}", s.deleteAuth)

	r.Get("/config", s.getConfig)
	r.Patch("/config", s.updateConfig)

	r.Get("/event", s.events)
}
