package server

import "draughtsman/internal/domain"

// Request payloads

type RecommendationRequest struct {
	DesignNeeds string `json:"designNeeds,omitempty" doc:"Free-text description of the design needs"`
}

// Response payloads

type RecommendationResponse struct {
	Success        bool   `json:"success"`
	Recommendation string `json:"recommendation,omitempty"`
	Error          string `json:"error,omitempty"`
}

type ProgramList struct {
	Items  []domain.TrainingProgram `json:"items"`
	Source string                   `json:"source" enum:"remote,fixture"`
}

type ProgramResponse struct {
	Item   domain.TrainingProgram `json:"item"`
	Source string                 `json:"source" enum:"remote,fixture"`
}

type ResourceList struct {
	Items  []domain.Resource `json:"items"`
	Source string            `json:"source" enum:"remote,fixture"`
}

type ResourceResponse struct {
	Item   domain.Resource `json:"item"`
	Source string          `json:"source" enum:"remote,fixture"`
}

type TestimonialList struct {
	Items  []domain.Testimonial `json:"items"`
	Source string               `json:"source" enum:"remote,fixture"`
}

type ShowcaseList struct {
	Items  []domain.ShowcaseActivity `json:"items"`
	Source string                    `json:"source" enum:"remote,fixture"`
}
