package devices

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"

	"github.com/jd-116/pushnotifier/pushnotifier"
	"github.com/jd-116/pushnotifier/types"
	"github.com/jd-116/pushnotifier/util"
)

// Lister lists the devices registered to the relayed account
type Lister interface {
	GetDevices(ctx context.Context) ([]types.Device, error)
}

// Routes creates a new Chi router with all of the routes for the device resource,
// at the root level
func Routes(lister Lister) *chi.Mux {
	router := chi.NewRouter()
	router.Get("/", GetAll(lister))
	return router
}

// GetAll lists every device, optionally narrowed by a fuzzy ?search= on title or model
func GetAll(lister Lister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		devices, err := lister.GetDevices(r.Context())
		if err != nil {
			util.Error(w, err)
			return
		}

		if search := r.URL.Query().Get("search"); search != "" {
			devices = pushnotifier.FilterDevices(devices, search)
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]interface{}{
			"devices": devices,
		})
	}
}
