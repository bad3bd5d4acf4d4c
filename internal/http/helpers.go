package http

import (
	"strings"

	"github.com/gin-gonic/gin"

	"cashrecon/internal/core"
	"cashrecon/internal/sources"
)

// HeaderActor names the user performing a write.
const HeaderActor = "X-Actor"

func actorOf(c *gin.Context) string {
	return sanitizeInput(c.GetHeader(HeaderActor))
}

// bindJSON decodes and validates the body, answering 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		RespondValidationFailed(c, bindingDetails(err))
		return false
	}
	return true
}

// pathDate parses the :date path parameter.
func pathDate(c *gin.Context) (core.Date, bool) {
	return parseDateValue(c, "date", c.Param("date"))
}

func parseDateValue(c *gin.Context, name, value string) (core.Date, bool) {
	d, err := core.ParseDate(value)
	if err != nil {
		RespondValidationFailed(c, name+": "+err.Error())
		return core.Date{}, false
	}
	return d, true
}

// listFilter reads store, from and to. Dates are optional but must parse,
// and from may not be after to.
func listFilter(c *gin.Context) (sources.Filter, bool) {
	f := sources.Filter{StoreID: strings.TrimSpace(c.Query("store"))}
	if v := c.Query("from"); v != "" {
		d, ok := parseDateValue(c, "from", v)
		if !ok {
			return f, false
		}
		f.From = d
	}
	if v := c.Query("to"); v != "" {
		d, ok := parseDateValue(c, "to", v)
		if !ok {
			return f, false
		}
		f.To = d
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To.Time) {
		RespondValidationFailed(c, "from is after to")
		return f, false
	}
	return f, true
}

// sanitizeInput trims and strips control characters.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
