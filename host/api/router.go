// Package api serves an ADC controller board over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"goadc/host/client"
)

// Device is what the handlers need from a board connection. *client.Client
// implements it.
type Device interface {
	Dictionary() *client.Dictionary
	Version(ctx context.Context) (client.Version, error)

	Start(ctx context.Context, group int) error
	Stop(ctx context.Context, group int) error
	EnableHwTrigger(ctx context.Context, group int) error
	DisableHwTrigger(ctx context.Context, group int) error
	EnableNotification(ctx context.Context, group int) error
	DisableNotification(ctx context.Context, group int) error
	EnableChannel(ctx context.Context, group, channel int) error
	DisableChannel(ctx context.Context, group, channel int) error
	Status(ctx context.Context, group int) (client.Status, error)
	Read(ctx context.Context, group int) ([]uint16, bool, error)
	ReadStream(ctx context.Context, group int) ([]uint16, int, error)

	Calibrate(ctx context.Context, unit int) error
	SetClockMode(ctx context.Context, mode int) error
	SetPower(ctx context.Context, state int) error
	Power(ctx context.Context) (current, target int, err error)
	Trace(ctx context.Context, size int) ([]client.TraceEvent, error)
}

// NewRouter returns the HTTP API for dev. Notifications published on bus are
// streamed from /api/events.
func NewRouter(dev Device, bus *Bus) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)

	h := &Handlers{dev: dev, events: bus}

	r.Route("/api", func(r chi.Router) {
		r.Get("/info", h.getInfo)

		r.Route("/groups/{gid}", func(r chi.Router) {
			r.Get("/", h.getStatus)
			r.Post("/start", h.groupAction(dev.Start))
			r.Post("/stop", h.groupAction(dev.Stop))
			r.Put("/hw-trigger", h.groupAction(dev.EnableHwTrigger))
			r.Delete("/hw-trigger", h.groupAction(dev.DisableHwTrigger))
			r.Put("/notification", h.groupAction(dev.EnableNotification))
			r.Delete("/notification", h.groupAction(dev.DisableNotification))
			r.Put("/channels/{cid}", h.channelAction(dev.EnableChannel))
			r.Delete("/channels/{cid}", h.channelAction(dev.DisableChannel))
			r.Get("/result", h.getResult)
			r.Get("/stream", h.getStream)
		})

		r.Post("/units/{uid}/calibrate", h.calibrate)
		r.Put("/clock", h.setClock)
		r.Get("/power", h.getPower)
		r.Put("/power", h.setPower)
		r.Get("/trace", h.getTrace)
		r.Get("/events", h.sseEvents)
	})
	return r
}
