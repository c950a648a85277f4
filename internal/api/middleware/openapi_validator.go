package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "approvedpremises.io/cas/internal/pkg/errors"
	"approvedpremises.io/cas/internal/pkg/logger"
)

// ValidatorOptions configures NewOpenAPIValidator.
type ValidatorOptions struct {
	// BasePath is stripped before route lookup when the API is mounted
	// under a prefix.
	BasePath string
	// ValidateResponses buffers every response and replaces bodies that
	// break the contract with a 500 problem document.
	ValidateResponses bool
}

// MustOpenAPIValidator creates the validator middleware and panics on setup failure.
func MustOpenAPIValidator(doc *openapi3.T, opts ValidatorOptions) gin.HandlerFunc {
	mw, err := NewOpenAPIValidator(doc, opts)
	if err != nil {
		panic(fmt.Sprintf("init openapi validator: %v", err))
	}
	return mw
}

// NewOpenAPIValidator checks requests, and optionally responses, against doc.
// Paths the document does not describe pass through untouched.
func NewOpenAPIValidator(doc *openapi3.T, opts ValidatorOptions) (gin.HandlerFunc, error) {
	if doc == nil {
		return nil, fmt.Errorf("openapi document is nil")
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("create openapi router: %w", err)
	}

	basePath := normalizeBasePath(opts.BasePath)
	filterOpts := &openapi3filter.Options{
		// Authentication and roles are enforced by JWTAuth and RequireRole.
		AuthenticationFunc: func(context.Context, *openapi3filter.AuthenticationInput) error { return nil },
	}

	return func(c *gin.Context) {
		origPath := c.Request.URL.Path
		origRawPath := c.Request.URL.RawPath
		restore := func() {
			c.Request.URL.Path = origPath
			c.Request.URL.RawPath = origRawPath
		}

		route, pathParams, routeErr := findRouteWithFallback(router, c.Request, basePath)
		if routeErr != nil {
			restore()
			if isPathNotFoundError(routeErr) {
				c.Next()
				return
			}
			abortProblem(c, apperrors.BadRequest(apperrors.CodeOpenAPIRoute, routeErr.Error()))
			return
		}

		reqInput := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options:    filterOpts,
		}
		err := openapi3filter.ValidateRequest(c.Request.Context(), reqInput)
		restore()
		if err != nil {
			abortProblem(c, apperrors.BadRequest(apperrors.CodeOpenAPIRequest, requestErrorDetail(err)))
			return
		}

		if !opts.ValidateResponses {
			c.Next()
			return
		}

		buffered := newBufferedResponseWriter(c.Writer)
		c.Writer = buffered
		c.Next()

		respInput := &openapi3filter.ResponseValidationInput{
			RequestValidationInput: reqInput,
			Status:                 buffered.Status(),
			Header:                 buffered.Header().Clone(),
			Options:                filterOpts,
		}
		if buffered.Size() > 0 {
			respInput.SetBodyBytes(buffered.body.Bytes())
		}

		log := logger.FromContext(c.Request.Context())
		if err := openapi3filter.ValidateResponse(c.Request.Context(), respInput); err != nil {
			log.Error("OpenAPI response validation failed",
				zap.String("method", c.Request.Method),
				zap.String("path", origPath),
				zap.Int("status", buffered.Status()),
				zap.Error(err),
			)
			buffered.ResetProblem(apperrors.Internal(apperrors.CodeOpenAPIResponse, "Response does not conform to the API contract"))
		}

		if _, err := buffered.FlushToOriginal(); err != nil {
			log.Warn("Flush buffered response failed",
				zap.String("method", c.Request.Method),
				zap.String("path", origPath),
				zap.Error(err),
			)
		}
	}, nil
}

// requestErrorDetail keeps the first line of a kin-openapi error; the rest
// repeats the schema and the offending value.
func requestErrorDetail(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		msg := reqErr.Error()
		if i := strings.IndexByte(msg, '\n'); i > 0 {
			return msg[:i]
		}
		return msg
	}
	return err.Error()
}

func normalizeBasePath(basePath string) string {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" || basePath == "/" {
		return ""
	}
	return "/" + strings.Trim(basePath, "/")
}

func normalizeValidationPath(basePath, path string) string {
	if basePath == "" {
		if path == "" {
			return "/"
		}
		return path
	}
	if path == basePath {
		return "/"
	}
	if strings.HasPrefix(path, basePath+"/") {
		return "/" + strings.TrimPrefix(path, basePath+"/")
	}
	return path
}

func findRouteWithFallback(
	router routers.Router,
	req *http.Request,
	basePath string,
) (*routers.Route, map[string]string, error) {
	origPath := req.URL.Path
	origRawPath := req.URL.RawPath

	candidates := [][2]string{{origPath, origRawPath}}
	normalizedPath := normalizeValidationPath(basePath, origPath)
	normalizedRawPath := origRawPath
	if origRawPath != "" {
		normalizedRawPath = normalizeValidationPath(basePath, origRawPath)
	}
	if normalizedPath != origPath || normalizedRawPath != origRawPath {
		candidates = append(candidates, [2]string{normalizedPath, normalizedRawPath})
	}

	var lastErr error
	for _, candidate := range candidates {
		req.URL.Path = candidate[0]
		req.URL.RawPath = candidate[1]

		route, pathParams, err := router.FindRoute(req)
		if err == nil {
			return route, pathParams, nil
		}
		if !isPathNotFoundError(err) {
			return nil, nil, err
		}
		lastErr = err
	}

	req.URL.Path = origPath
	req.URL.RawPath = origRawPath
	return nil, nil, lastErr
}

func isPathNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, routers.ErrPathNotFound) {
		return true
	}
	if strings.Contains(err.Error(), routers.ErrPathNotFound.Error()) {
		return true
	}
	var routeErr *routers.RouteError
	if errors.As(err, &routeErr) && strings.Contains(routeErr.Reason, routers.ErrPathNotFound.Error()) {
		return true
	}
	return false
}

type bufferedResponseWriter struct {
	gin.ResponseWriter
	body        bytes.Buffer
	statusCode  int
	wroteHeader bool
	size        int
}

func newBufferedResponseWriter(w gin.ResponseWriter) *bufferedResponseWriter {
	return &bufferedResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (w *bufferedResponseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.statusCode = code
	w.wroteHeader = true
}

func (w *bufferedResponseWriter) WriteHeaderNow() {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
}

func (w *bufferedResponseWriter) Write(data []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.body.Write(data)
	w.size += n
	return n, err
}

func (w *bufferedResponseWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *bufferedResponseWriter) Status() int {
	if !w.wroteHeader {
		return http.StatusOK
	}
	return w.statusCode
}

func (w *bufferedResponseWriter) Size() int {
	return w.size
}

func (w *bufferedResponseWriter) Written() bool {
	return w.wroteHeader
}

func (w *bufferedResponseWriter) ResetProblem(e *apperrors.AppError) {
	w.statusCode = e.HTTPStatus
	w.wroteHeader = true
	w.body.Reset()
	w.size = 0
	w.Header().Set("Content-Type", ProblemContentType)
	data, err := json.Marshal(e.Problem())
	if err != nil {
		data = []byte(`{"type":"about:blank","title":"Internal Server Error","status":500}`)
	}
	_, _ = w.Write(data)
}

func (w *bufferedResponseWriter) FlushToOriginal() (int, error) {
	w.ResponseWriter.WriteHeader(w.Status())
	if w.body.Len() == 0 {
		return 0, nil
	}
	return w.ResponseWriter.Write(w.body.Bytes())
}
