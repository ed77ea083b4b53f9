package handlers

import (
	"net/http"
	"time"

	"mercator-hq/minerva/pkg/api"
	"mercator-hq/minerva/pkg/api/middleware"
	"mercator-hq/minerva/pkg/api/types"
	"mercator-hq/minerva/pkg/providers"
)

// EndpointResponses is the ledger endpoint label for the Responses
// passthrough surface.
const EndpointResponses = "/v1/responses"

// Responses handles POST /v1/responses: a passthrough Responses-style
// call for providers that support it. Providers without the capability
// get a 400 with code responses_unsupported rather than a doomed
// upstream call.
func (d *Deps) Responses() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := api.ParseResponsesRequest(r)
		if err != nil {
			_ = api.WriteErrorResponse(w, api.HandleError(err))
			return
		}

		provider, providerName, backendModel, _, err := d.Registry.Resolve(req.Model)
		if err != nil {
			_ = api.WriteErrorResponse(w, api.HandleError(err))
			return
		}

		if !provider.GetCapabilities().SupportsResponses {
			_ = api.WriteErrorResponse(w, types.NewErrorResponse(
				"The resolved provider does not support the Responses API.",
				types.ErrorTypeInvalidRequest,
				"model",
				types.CodeResponsesUnsupported,
			))
			return
		}

		// Store defaults to true, matching the upstream API.
		store := true
		if req.Store != nil {
			store = *req.Store
		}

		respReq := &providers.ResponseRequest{
			Model:              backendModel,
			Input:              responseInputMessages(req.Input),
			Temperature:        req.Temperature,
			MaxOutputTokens:    req.MaxOutputTokens,
			PreviousResponseID: req.PreviousResponseID,
			Store:              store,
			Extra:              req.ExtraBody,
		}

		logger := d.logger().With(
			"request_id", middleware.GetRequestID(r.Context()),
			"model", req.Model,
		)

		start := time.Now()
		result, err := provider.Response(r.Context(), respReq)
		col := d.collector()
		if err != nil {
			col.RecordRequest(providerName, backendModel, "error", time.Since(start))
			logger.Error("responses call failed", "error", err)
			_ = api.WriteErrorResponse(w, api.HandleError(err))
			return
		}
		col.RecordRequest(providerName, backendModel, "ok", time.Since(start))
		d.recordPassthroughUsage(r, providerName, backendModel, time.Since(start), result.Usage, logger)

		_ = api.WriteJSONResponse(w, http.StatusOK, api.FormatResponsesResponse(result, providerName, req.Model))
	}
}

// responseInputMessages converts either wire form of the input field to
// provider messages. The bare-string form becomes a single user message.
func responseInputMessages(input types.ResponseInput) []providers.Message {
	if len(input.Items) == 0 {
		return []providers.Message{providers.UserMessage(input.Text)}
	}
	messages := make([]providers.Message, 0, len(input.Items))
	for _, item := range input.Items {
		role := item.Role
		if role == "" {
			role = providers.RoleUser
		}
		messages = append(messages, providers.Message{Role: role, Content: item.Content})
	}
	return messages
}
