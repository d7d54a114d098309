package dashd

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/openclaw/dashboard/dashd/httpapi"
	"github.com/openclaw/dashboard/dashd/integrations"
	"github.com/openclaw/dashboard/dashsdk"
)

func (api *API) usagePanels(rw http.ResponseWriter, r *http.Request) {
	panels, err := api.Status.Panels(r.Context())
	if err != nil {
		httpapi.InternalServerError(rw, err)
		return
	}
	httpapi.Write(rw, http.StatusOK, dashsdk.UsagePanelsResponse{
		Panels:    panels,
		Timestamp: api.Clock.Now(),
	})
}

func (api *API) providers(rw http.ResponseWriter, r *http.Request) {
	doc, err := api.Integrations.Load(r.Context())
	if err != nil {
		httpapi.InternalServerError(rw, err)
		return
	}
	httpapi.Write(rw, http.StatusOK, integrations.View(doc))
}

func (api *API) updateProviders(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req dashsdk.UpdateProvidersRequest
	if !httpapi.Read(rw, r, &req) {
		return
	}
	doc, ignored, err := api.Integrations.Update(ctx, req.Providers)
	if err != nil {
		httpapi.InternalServerError(rw, err)
		return
	}
	if len(ignored) > 0 {
		api.Logger.Info(ctx, "ignored unknown providers", slog.F("providers", ignored))
	}
	api.Status.InvalidateUsage()
	httpapi.Write(rw, http.StatusOK, integrations.View(doc))
}

// validateProvider answers 422 when the draft does not work, with the
// reason in the body.
func (api *API) validateProvider(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req dashsdk.ValidateProviderRequest
	if !httpapi.Read(rw, r, &req) {
		return
	}
	id := dashsdk.ProviderID(chi.URLParam(r, "provider"))
	res, err := api.Usage.ValidateDraft(ctx, id, req.Config)
	if xerrors.Is(err, integrations.ErrUnknownProvider) {
		httpapi.Write(rw, http.StatusBadRequest, dashsdk.Response{
			Message: "Unsupported provider.",
			Validations: []dashsdk.ValidationError{
				{Field: "provider", Detail: string(id)},
			},
		})
		return
	}
	if err != nil {
		httpapi.InternalServerError(rw, err)
		return
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	httpapi.Write(rw, status, res)
}
