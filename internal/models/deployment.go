package models

import "time"

type Deployment struct {
	ID                string           `json:"id"`
	SourceURL         string           `json:"source_url"`
	Subdomain         string           `json:"subdomain"`
	Status            DeploymentStatus `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	ComputeInstanceID *string          `json:"compute_instance_id,omitempty"`
	PublicAddress     *string          `json:"public_address,omitempty"`
	ArtifactKey       *string          `json:"artifact_key,omitempty"`
	BuildID           *string          `json:"build_id,omitempty"`
	ResultURL         *string          `json:"result_url,omitempty"`
	Error             *string          `json:"error,omitempty"`
}

// NewDeployment returns a record in the starting state.
func NewDeployment(id, sourceURL, subdomain string) Deployment {
	now := time.Now().UTC()
	return Deployment{
		ID:        id,
		SourceURL: sourceURL,
		Subdomain: subdomain,
		Status:    DeploymentStatusStarting,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so callers never share pointer fields with the registry.
func (d Deployment) Clone() Deployment {
	out := d
	out.ComputeInstanceID = clonePtr(d.ComputeInstanceID)
	out.PublicAddress = clonePtr(d.PublicAddress)
	out.ArtifactKey = clonePtr(d.ArtifactKey)
	out.BuildID = clonePtr(d.BuildID)
	out.ResultURL = clonePtr(d.ResultURL)
	out.Error = clonePtr(d.Error)
	return out
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
