// Package app is the API itself: its routes, its bindings and the static
// assets compiled into the binary.
package app

import (
	"embed"
	"net/http"
	"time"

	"github.com/km-arc/coreapi/app/controllers"
	"github.com/km-arc/coreapi/app/models"
	"github.com/km-arc/coreapi/app/repositories"
	"github.com/km-arc/coreapi/framework/config"
	"github.com/km-arc/coreapi/framework/container"
	gohttp "github.com/km-arc/coreapi/framework/http"
	"github.com/km-arc/coreapi/framework/routing"
)

// Public holds the embedded static assets under "public".
//
//go:embed public
var Public embed.FS

// PublicDir is the root of the asset tree inside Public.
const PublicDir = "public"

// ServiceProvider registers the application's bindings and, on Boot, its
// routes.
type ServiceProvider struct{}

func (p *ServiceProvider) Register(app *container.Container) {
	repositories.Register(app)
}

func (p *ServiceProvider) Boot(app *container.Container) error {
	router, err := container.Resolve[*routing.Router](app)
	if err != nil {
		return err
	}
	cfg, err := container.Resolve[*config.Config](app)
	if err != nil {
		return err
	}
	Routes(router, cfg)
	return nil
}

// Routes registers every application endpoint on r.
func Routes(r *routing.Router, cfg *config.Config) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		gohttp.NewResponse(w).Success(gohttp.Envelope{"status": "ok"})
	})

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		gohttp.NewResponse(w).Success(gohttp.Envelope{
			"message": "Welcome to " + cfg.App.Name,
			"name":    cfg.App.Name,
			"env":     cfg.App.Env,
			"swagger": cfg.Swagger.Path + "/",
		})
	})

	r.Prefix("/api", func(api *routing.Router) {
		api.Resource("/notes", controllers.NewEntityController("/api/notes", func(n *models.Note) {
			n.CreatedAt = time.Now().UTC()
		}))

		uploads := &controllers.UploadsController{}
		api.Resource("/uploads", uploads)
		api.Get("/uploads/{id}/content", uploads.Download)
	})
}
