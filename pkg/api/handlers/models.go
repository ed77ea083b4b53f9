package handlers

import (
	"net/http"

	"mercator-hq/minerva/pkg/api"
	"mercator-hq/minerva/pkg/api/types"
)

// Models handles GET /v1/models: the configured logical model catalogue
// with each model's provider route and effective engine defaults.
// Listing reads the static routes only; no provider is instantiated.
func (d *Deps) Models() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := d.Registry.Models()

		list := types.ModelList{
			Object: "list",
			Data:   make([]types.ModelInfo, 0, len(ids)),
		}
		for _, id := range ids {
			route, ok := d.Registry.RouteFor(id)
			if !ok {
				continue
			}
			list.Data = append(list.Data, types.ModelInfo{
				ID:       id,
				Provider: route.Provider,
				Model:    route.Model,
				Level:    route.Defaults.Level,
				Features: types.ModelFeatures{
					MaxIterations:         route.Defaults.MaxIterations,
					RequiredVerifications: route.Defaults.RequiredVerifications,
					EnablePlanning:        route.Defaults.EnablePlanning,
					EnableParallelCheck:   route.Defaults.EnableParallelCheck,
				},
			})
		}

		_ = api.WriteJSONResponse(w, http.StatusOK, list)
	}
}
