package handlers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"

	"approvedpremises.io/cas/internal/api/middleware"
	"approvedpremises.io/cas/internal/domain"
	apperrors "approvedpremises.io/cas/internal/pkg/errors"
)

// pathParam binds a simple-style path parameter.
func pathParam(c *gin.Context, name string) (string, bool) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, c.Param(name), &v, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil || strings.TrimSpace(v) == "" {
		fail(c, apperrors.BadRequest(apperrors.CodeInvalidPathParam, fmt.Sprintf("Invalid format for parameter %s", name)))
		return "", false
	}
	return v, true
}

// pathParams binds several path parameters in order.
func pathParams(c *gin.Context, names ...string) ([]string, bool) {
	out := make([]string, 0, len(names))
	for _, n := range names {
		v, ok := pathParam(c, n)
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

// currentUser is set by JWTAuth on every authenticated route.
func currentUser(c *gin.Context) *domain.User {
	return middleware.GetUser(c.Request.Context())
}

// Date is a calendar date on the wire as YYYY-MM-DD.
type Date struct{ time.Time }

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return fmt.Errorf("date %q must be YYYY-MM-DD", s)
	}
	d.Time = t
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(domain.FormatDate(d.Time))
}

func dateOf(t time.Time) Date { return Date{t} }

func optionalDate(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	return &Date{*t}
}

func timeOf(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

// rawJSON returns a stored JSON document unchanged.
func rawJSON(s *string) json.RawMessage {
	if s == nil {
		return nil
	}
	return json.RawMessage(*s)
}

// jsonString keeps the submitted bytes so they round-trip unchanged.
func jsonString(m json.RawMessage) string {
	return string(m)
}
