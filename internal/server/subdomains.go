// internal/server/subdomains.go
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/core/ports"
)

// subdomainJSON es la forma serializada de un subdominio. A diferencia del
// export, aquí todos los campos van siempre presentes: la UI hace polling y
// espera una forma estable.
type subdomainJSON struct {
	ID           uint       `json:"id"`
	Hostname     string     `json:"hostname"`
	TargetDomain *string    `json:"target_domain"`
	URI          string     `json:"uri"`
	OnlineState  string     `json:"online_state"`
	HTTPStatus   *int       `json:"http_status"`
	ResolvedIP   string     `json:"resolved_ip"`
	CNAME        string     `json:"cname"`
	LastProbedAt *time.Time `json:"last_probed_at"`
	FirstSeenAt  time.Time  `json:"first_seen_at"`
	LastSeenAt   time.Time  `json:"last_seen_at"`
}

func toSubdomainJSON(sub *domain.Subdomain) subdomainJSON {
	return subdomainJSON{
		ID:           sub.ID,
		Hostname:     sub.Hostname,
		TargetDomain: sub.TargetDomain,
		URI:          sub.URI,
		OnlineState:  sub.OnlineState.String(),
		HTTPStatus:   sub.HTTPStatus,
		ResolvedIP:   sub.ResolvedIP,
		CNAME:        sub.CNAME,
		LastProbedAt: sub.LastProbedAt,
		FirstSeenAt:  sub.FirstSeenAt,
		LastSeenAt:   sub.LastSeenAt,
	}
}

func toSubdomainJSONs(subs []*domain.Subdomain) []subdomainJSON {
	out := make([]subdomainJSON, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toSubdomainJSON(sub))
	}
	return out
}

// subdomainFilter arma el filtro a partir de los query params comunes a los
// listados de subdominios.
func subdomainFilter(c *gin.Context) ports.SubdomainFilter {
	f := ports.SubdomainFilter{
		Target: strings.ToLower(strings.TrimSpace(c.Query("target"))),
		Search: strings.TrimSpace(c.Query("search")),
		Limit:  queryInt(c, "limit", 0),
		Offset: queryInt(c, "offset", 0),
	}
	if state := c.Query("state"); state != "" {
		f.OnlineState = domain.OnlineState(state)
	}
	if c.Query("alive") == "true" {
		f.AliveOnly = true
	}
	return f
}

func (s *Server) listSubdomains(c *gin.Context) {
	filter := subdomainFilter(c)
	if filter.OnlineState != "" && !filter.OnlineState.IsValid() {
		fail(c, http.StatusBadRequest, "Invalid online state filter")
		return
	}

	subs, err := s.store.Subdomains(c.Request.Context(), filter)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	countFilter := filter
	countFilter.Limit = 0
	countFilter.Offset = 0
	total, err := s.store.CountSubdomains(c.Request.Context(), countFilter)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subdomains": toSubdomainJSONs(subs),
		"total":      total,
	})
}
