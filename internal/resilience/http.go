package resilience

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// PostJSON sends in as a JSON POST to url and decodes a 2xx reply into out.
// A request that cannot be built is a *ValidationError, a non-2xx reply goes
// through CheckResponse, and an undecodable body is an *InvalidResponseError.
func PostJSON(ctx context.Context, client *http.Client, service, url string, header http.Header, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return &ValidationError{Field: "body", Reason: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &ValidationError{Field: "url", Reason: err.Error()}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", service, err)
	}
	defer resp.Body.Close()

	if err := CheckResponse(service, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &InvalidResponseError{Service: service, Reason: "decode: " + err.Error()}
	}
	return nil
}
