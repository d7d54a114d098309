package dashsdk

import (
	"context"
	"fmt"
	"net/http"
)

// ClearSecretKey in a provider patch wipes the stored api_key even though
// the patch leaves it empty.
const ClearSecretKey = "clear_api_key"

// ProviderView is the redacted form of one provider's settings. The raw
// api_key is never present; APIKeyMasked and HasAPIKey replace it.
type ProviderView struct {
	ID           ProviderID     `json:"id"`
	Title        string         `json:"title"`
	Enabled      bool           `json:"enabled"`
	APIKeyMasked string         `json:"api_key_masked"`
	HasAPIKey    bool           `json:"has_api_key"`
	Fields       map[string]any `json:"fields"`
}

type ProvidersResponse struct {
	Version   int            `json:"version"`
	Providers []ProviderView `json:"providers"`
}

// UpdateProvidersRequest carries partial per-provider patches. Unknown
// providers and fields are ignored.
type UpdateProvidersRequest struct {
	Providers map[ProviderID]map[string]any `json:"providers" validate:"required"`
}

// ValidateProviderRequest holds an unsaved patch for one provider. It is
// merged over the saved settings the same way an update would be.
type ValidateProviderRequest struct {
	Config map[string]any `json:"config"`
}

type ValidateProviderResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Panel   *UsagePanel `json:"panel,omitempty"`
}

func (c *Client) Providers(ctx context.Context) (ProvidersResponse, error) {
	return makeRequest[ProvidersResponse](ctx, c, requestArgs{
		Method:     http.MethodGet,
		URL:        "/api/integrations/models",
		ExpectCode: http.StatusOK,
	})
}

func (c *Client) UpdateProviders(ctx context.Context, req UpdateProvidersRequest) (ProvidersResponse, error) {
	return makeRequest[ProvidersResponse](ctx, c, requestArgs{
		Method:     http.MethodPut,
		URL:        "/api/integrations/models",
		Body:       req,
		ExpectCode: http.StatusOK,
	})
}

// ValidateProvider tries a draft against the upstream without saving it.
// A failed validation is not an error; check Success.
func (c *Client) ValidateProvider(ctx context.Context, id ProviderID, req ValidateProviderRequest) (ValidateProviderResponse, error) {
	res, err := c.Request(ctx, http.MethodPost, fmt.Sprintf("/api/integrations/models/%s/validate", id), req)
	if err != nil {
		return ValidateProviderResponse{}, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusUnprocessableEntity {
		return ValidateProviderResponse{}, ReadBodyAsError(res)
	}
	var resp ValidateProviderResponse
	return resp, decodeJSON(res, &resp)
}
