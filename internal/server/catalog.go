package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"draughtsman/internal/content"
)

type slugPath struct {
	Slug string `path:"slug"`
}

func registerCatalog(api huma.API, c content.Catalog) {
	huma.Register(api, huma.Operation{
		OperationID: "list-programs",
		Method:      http.MethodGet,
		Path:        "/programs",
		Summary:     "List training programs",
		Tags:        []string{"catalog"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ProgramList `json:"body"`
	}, error) {
		l, err := c.Programs(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProgramList `json:"body"`
		}{Body: ProgramList{Items: l.Items, Source: string(l.Source)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-program",
		Method:      http.MethodGet,
		Path:        "/programs/{slug}",
		Summary:     "Get a training program",
		Tags:        []string{"catalog"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *slugPath) (*struct {
		Body ProgramResponse `json:"body"`
	}, error) {
		it, err := c.Program(ctx, input.Slug)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProgramResponse `json:"body"`
		}{Body: ProgramResponse{Item: it.Item, Source: string(it.Source)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-resources",
		Method:      http.MethodGet,
		Path:        "/resources",
		Summary:     "List resources",
		Tags:        []string{"catalog"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ResourceList `json:"body"`
	}, error) {
		l, err := c.Resources(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ResourceList `json:"body"`
		}{Body: ResourceList{Items: l.Items, Source: string(l.Source)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-resource",
		Method:      http.MethodGet,
		Path:        "/resources/{slug}",
		Summary:     "Get a resource",
		Tags:        []string{"catalog"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *slugPath) (*struct {
		Body ResourceResponse `json:"body"`
	}, error) {
		it, err := c.Resource(ctx, input.Slug)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ResourceResponse `json:"body"`
		}{Body: ResourceResponse{Item: it.Item, Source: string(it.Source)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-testimonials",
		Method:      http.MethodGet,
		Path:        "/testimonials",
		Summary:     "List client testimonials",
		Tags:        []string{"catalog"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body TestimonialList `json:"body"`
	}, error) {
		l, err := c.Testimonials(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TestimonialList `json:"body"`
		}{Body: TestimonialList{Items: l.Items, Source: string(l.Source)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-showcase",
		Method:      http.MethodGet,
		Path:        "/showcase",
		Summary:     "List showcase activities",
		Tags:        []string{"catalog"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ShowcaseList `json:"body"`
	}, error) {
		l, err := c.Showcase(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ShowcaseList `json:"body"`
		}{Body: ShowcaseList{Items: l.Items, Source: string(l.Source)}}, nil
	})
}
