package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/hlog"

	"github.com/jd-116/pushnotifier/auth"
	"github.com/jd-116/pushnotifier/types"
	"github.com/jd-116/pushnotifier/util"
)

// Sender delivers the three notification kinds to devices
type Sender interface {
	SendMessage(ctx context.Context, deviceIDs []string, content string, silent bool) (bool, error)
	SendURL(ctx context.Context, deviceIDs []string, url string, silent bool) (bool, error)
	SendNotification(ctx context.Context, deviceIDs []string, content string, url string, silent bool) (bool, error)
}

// Routes creates a new Chi router with all of the routes for the notification resource,
// at the root level
func Routes(sender Sender, maxBodyBytes int64) *chi.Mux {
	router := chi.NewRouter()
	router.Post("/{kind}", Send(sender, maxBodyBytes))
	return router
}

// Send relays a notification of the kind named in the URL
func Send(sender Sender, maxBodyBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := types.NotificationKind(chi.URLParam(r, "kind"))
		switch kind {
		case types.KindText, types.KindURL, types.KindNotification:
		default:
			util.ErrorWithCode(w, fmt.Errorf("unknown notification kind '%s'", kind),
				http.StatusNotFound)
			return
		}

		if maxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}

		var request types.NotificationRequest
		err := render.DecodeJSON(r.Body, &request)
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				util.Error(w, err)
				return
			}
			util.ErrorWithCode(w, fmt.Errorf("malformed notification request: %v", err),
				http.StatusBadRequest)
			return
		}

		var delivered bool
		switch kind {
		case types.KindText:
			delivered, err = sender.SendMessage(r.Context(), request.Devices, request.Content, request.Silent)
		case types.KindURL:
			delivered, err = sender.SendURL(r.Context(), request.Devices, request.URL, request.Silent)
		case types.KindNotification:
			delivered, err = sender.SendNotification(r.Context(), request.Devices, request.Content, request.URL, request.Silent)
		}
		if err != nil {
			util.Error(w, err)
			return
		}

		hlog.FromRequest(r).Info().
			Str("kind", string(kind)).
			Str("caller", auth.Subject(r.Context())).
			Int("devices", len(request.Devices)).
			Bool("delivered", delivered).
			Msg("relayed notification")

		render.Status(r, http.StatusOK)
		render.JSON(w, r, types.NotificationResult{Delivered: delivered})
	}
}
