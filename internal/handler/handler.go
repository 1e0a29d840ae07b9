// Package handler holds the gin handlers for the API surface.
package handler

import (
	"attendly/internal/academic"
	"attendly/internal/attendance"
	"attendly/internal/cloudinary"
	"attendly/internal/config"
	"attendly/internal/faceclient"
	"attendly/internal/identity"
	"attendly/internal/license"
	"attendly/internal/livefeed"
	"attendly/internal/onboard"
	"attendly/internal/session"
)

// Handler carries the services the HTTP layer dispatches into.
type Handler struct {
	cfg        config.App
	identities *identity.Service
	users      *identity.Repository
	sessions   *session.Manager
	attendance *attendance.Service
	licenses   *license.Service
	onboarding *onboard.Service
	academics  *academic.Repository
	bus        livefeed.Bus
	faces      *faceclient.Client
	cloud      *cloudinary.Client // nil when not configured
}

// New wires a handler.
func New(
	cfg config.App,
	identities *identity.Service,
	users *identity.Repository,
	sessions *session.Manager,
	att *attendance.Service,
	licenses *license.Service,
	onboarding *onboard.Service,
	academics *academic.Repository,
	bus livefeed.Bus,
	faces *faceclient.Client,
	cloud *cloudinary.Client,
) *Handler {
	return &Handler{
		cfg:        cfg,
		identities: identities,
		users:      users,
		sessions:   sessions,
		attendance: att,
		licenses:   licenses,
		onboarding: onboarding,
		academics:  academics,
		bus:        bus,
		faces:      faces,
		cloud:      cloud,
	}
}
