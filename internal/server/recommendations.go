package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"draughtsman/internal/recommend"
)

func registerRecommendations(api huma.API, svc recommend.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "recommend",
		Method:      http.MethodPost,
		Path:        "/recommendations",
		Summary:     "Recommend programs and resources for a set of design needs",
		Description: "Blank needs answer 400 and generator failures 502, both with success=false.",
	}, func(ctx context.Context, input *struct {
		Body RecommendationRequest `json:"body"`
	}) (*struct {
		Status int
		Body   RecommendationResponse `json:"body"`
	}, error) {
		out := &struct {
			Status int
			Body   RecommendationResponse `json:"body"`
		}{Status: http.StatusOK}
		rec, err := svc.Recommend(ctx, input.Body.DesignNeeds)
		if err != nil {
			var re *recommend.Error
			if !errors.As(err, &re) {
				return nil, handleError(err)
			}
			out.Status = http.StatusBadGateway
			if re.Empty() {
				out.Status = http.StatusBadRequest
			}
			out.Body = RecommendationResponse{Success: false, Error: re.Message}
			return out, nil
		}
		out.Body = RecommendationResponse{Success: true, Recommendation: rec.Recommendation}
		return out, nil
	})
}
