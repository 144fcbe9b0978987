// Package clients holds thin HTTP consumers for the sibling CRUD services the
// scheduling core collaborates with. All calls are best-effort: the core never
// fails a scheduling operation because a directory lookup did.
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// TechnicianDirectory resolves technician ids to display names, for
// presentation only.
type TechnicianDirectory interface {
	DisplayName(ctx context.Context, technicianID string) (string, error)
}

// InterventionRegistry answers existence checks for intervention (job) ids.
type InterventionRegistry interface {
	Exists(ctx context.Context, interventionID string) (bool, error)
}

type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

func NewHTTPDirectory(baseURL string) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (d *HTTPDirectory) DisplayName(ctx context.Context, technicianID string) (string, error) {
	var out struct {
		DisplayName string `json:"display_name"`
	}
	err := d.getJSON(ctx, "/api/v1/technicians/"+url.PathEscape(technicianID), &out)
	if err != nil {
		return "", err
	}
	return out.DisplayName, nil
}

func (d *HTTPDirectory) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("directory status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type HTTPInterventionRegistry struct {
	baseURL string
	client  *http.Client
}

func NewHTTPInterventionRegistry(baseURL string) *HTTPInterventionRegistry {
	return &HTTPInterventionRegistry{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (r *HTTPInterventionRegistry) Exists(ctx context.Context, interventionID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/v1/interventions/"+url.PathEscape(interventionID), nil)
	if err != nil {
		return false, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("intervention registry status %d", resp.StatusCode)
	}
}
