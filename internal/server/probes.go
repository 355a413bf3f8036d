// internal/server/probes.go
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lcalzada-xor/subsentry/internal/core/usecases"
)

// jobJSON es la forma serializada de un trabajo de sondeo.
type jobJSON struct {
	ID          string     `json:"id"`
	Total       int        `json:"total"`
	Completed   int        `json:"completed"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func toJobJSON(job usecases.ProbeJob) jobJSON {
	return jobJSON{
		ID:          job.ID,
		Total:       job.Total,
		Completed:   job.Completed,
		Status:      job.Status,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}

type probeBatchRequest struct {
	Hostnames []string `json:"hostnames"`
}

// probeBatch lanza el sondeo en segundo plano de un lote arbitrario de
// hostnames y responde de inmediato con el id de trabajo para hacer polling.
func (s *Server) probeBatch(c *gin.Context) {
	var req probeBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Hostnames) == 0 {
		fail(c, http.StatusBadRequest, "hostnames array is required")
		return
	}

	hosts := make([]string, 0, len(req.Hostnames))
	for _, host := range req.Hostnames {
		if host = strings.TrimSpace(host); host != "" {
			hosts = append(hosts, host)
		}
	}
	if len(hosts) == 0 {
		fail(c, http.StatusBadRequest, "hostnames array is required")
		return
	}

	id := s.probes.ProbeBatch(hosts)
	c.JSON(http.StatusAccepted, gin.H{
		"job_id": id,
		"total":  len(hosts),
	})
}

func (s *Server) listProbeJobs(c *gin.Context) {
	jobs := s.probes.Tracker().Jobs()
	out := make([]jobJSON, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, toJobJSON(job))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out})
}

func (s *Server) getProbeJob(c *gin.Context) {
	job, ok := s.probes.Tracker().Progress(c.Param("id"))
	if !ok {
		fail(c, http.StatusNotFound, "Probe job not found")
		return
	}
	c.JSON(http.StatusOK, toJobJSON(job))
}

func (s *Server) deleteProbeJob(c *gin.Context) {
	if !s.probes.Tracker().DeleteJob(c.Param("id")) {
		fail(c, http.StatusNotFound, "Probe job not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Probe job deleted"})
}

// probeSubdomain sondea un subdominio de forma síncrona y retorna su estado
// ya actualizado. Para lotes grandes está probeBatch.
func (s *Server) probeSubdomain(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	sub, err := s.store.Subdomain(c.Request.Context(), id)
	if err != nil {
		s.notFoundOr(c, err, "Subdomain not found")
		return
	}

	s.probes.ProbeHosts([]string{sub.Hostname}, nil)

	sub, err = s.store.Subdomain(c.Request.Context(), id)
	if err != nil {
		s.notFoundOr(c, err, "Subdomain not found")
		return
	}
	c.JSON(http.StatusOK, toSubdomainJSON(sub))
}
