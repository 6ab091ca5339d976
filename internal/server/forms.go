package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"draughtsman/internal/domain"
	"draughtsman/internal/engine"
)

const maxMultipartMemory = 1 << 20

type formInput struct {
	Kind        string `path:"kind" doc:"guidance, consultation, scheduling, booking or newsletter"`
	ContentType string `header:"Content-Type"`
}

type formOutput struct {
	Status int
	Body   domain.FormResult `json:"body"`
}

func registerForms(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-form",
		Method:      http.MethodPost,
		Path:        "/forms/{kind}",
		Summary:     "Submit a lead-capture form",
		Description: "Accepts a JSON object, a url-encoded form or a multipart form. " +
			"Rejected submissions answer 422 and storage failures 500, both with a form result body.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *formInput) (*formOutput, error) {
		kind, err := domain.ParseFormKind(input.Kind)
		if err != nil {
			return nil, newAPIError(http.StatusNotFound, "unknown_form", err.Error(), map[string]any{"kind": input.Kind})
		}
		if kind == domain.KindScheduling && e.Config != nil && e.Config.Auth.SchedulingRequiresAuth() {
			if _, ok := principalFromContext(ctx); !ok {
				return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "sign in to book a session", nil)
			}
		}
		raw, err := parseFormBody(input.ContentType, bodyBytes(ctx))
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		res := e.Submit(ctx, kind, raw)
		return &formOutput{Status: formStatus(res), Body: res}, nil
	})
}

func formStatus(res domain.FormResult) int {
	switch {
	case res.Success:
		return http.StatusOK
	case len(res.Issues) > 0:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// parseFormBody flattens a submission into field values. An empty body is an
// empty submission, left for the schema to reject.
func parseFormBody(contentType string, body []byte) (map[string]string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]string{}, nil
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "application/json"
	}
	switch mediaType {
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
		return firstValues(values), nil
	case "multipart/form-data":
		boundary := params["boundary"]
		if boundary == "" {
			return nil, errors.New("multipart body missing boundary")
		}
		form, err := multipart.NewReader(bytes.NewReader(body), boundary).ReadForm(maxMultipartMemory)
		if err != nil {
			return nil, fmt.Errorf("invalid multipart body: %w", err)
		}
		defer form.RemoveAll()
		return firstValues(form.Value), nil
	default:
		return parseJSONFields(body)
	}
}

// parseJSONFields accepts a flat object. Scalars are kept as their text;
// nested values are rejected.
func parseJSONFields(body []byte) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid JSON body: trailing data")
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			return nil, fmt.Errorf("field %q must be a string", k)
		}
	}
	return out, nil
}

func firstValues(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) == 0 {
			continue
		}
		out[k] = vs[0]
	}
	return out
}
