// internal/executors/api/api.go

// Package api ejecuta herramientas que consumen APIs HTTP de fuentes
// pasivas: certificate transparency, archivos históricos y agregadores.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/core/ports"
	"github.com/lcalzada-xor/subsentry/internal/executors/common"
	"github.com/lcalzada-xor/subsentry/internal/platform/cache"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
	"github.com/lcalzada-xor/subsentry/internal/platform/httpclient"
	"github.com/lcalzada-xor/subsentry/internal/platform/logx"
	"github.com/lcalzada-xor/subsentry/internal/platform/registry"
	"github.com/lcalzada-xor/subsentry/internal/platform/validator"
)

// Auto-registro del ejecutor al importar el package
func init() {
	if err := registry.Global().Register(
		domain.ToolKindAPI,
		func(deps ports.ExecutorDeps) (ports.Executor, error) {
			return New(deps.Logger, deps.Cache), nil
		},
		ports.ExecutorMetadata{
			Kind:        domain.ToolKindAPI,
			Description: "Queries HTTP APIs of passive sources and extracts hostnames",
			Version:     "1.0.0",
		},
	); err != nil {
		logx.New().Warn("failed to register api executor", "error", err.Error())
	}
}

const (
	// commitEvery confirma el lote cada N enlaces nuevos.
	commitEvery = 20

	// defaultTimeout por petición cuando la herramienta no declara uno.
	defaultTimeout = 30 * time.Second

	// indexCacheTTL memoiza el endpoint descubierto via index_url.
	indexCacheTTL = time.Hour

	// defaultMaxPages corta cadenas de cursores sin fin.
	defaultMaxPages = 50
)

// urlHostRegex saca el host de una URL encontrada en una respuesta.
var urlHostRegex = regexp.MustCompile(`https?://([^/:?#]+)`)

// Executor implementa ports.Executor para herramientas api.
type Executor struct {
	logger    logx.Logger
	cache     cache.Cache
	transport http.RoundTripper
}

// New crea el ejecutor de herramientas api.
func New(logger logx.Logger, c cache.Cache) *Executor {
	return &Executor{
		logger: logger.With("executor", "api"),
		cache:  c,
	}
}

// SetTransport fija el transporte HTTP de las peticiones. Los tests inyectan
// transportes guionizados por aquí.
func (e *Executor) SetTransport(rt http.RoundTripper) {
	e.transport = rt
}

// Kind retorna el tipo de herramienta que este ejecutor sabe correr.
func (e *Executor) Kind() domain.ToolKind {
	return domain.ToolKindAPI
}

// Run consulta la API de la herramienta, paginando si procede, y persiste
// los hostnames extraídos.
func (e *Executor) Run(ctx context.Context, job ports.ExecJob) error {
	tool := job.Tool
	spec := tool.Spec
	logger := e.logger.With("tool", tool.Name, "scan_id", job.Scan.ID)

	apiKey := ""
	if spec.APIKeySetting != "" {
		value, err := job.Settings.Setting(ctx, spec.APIKeySetting)
		if err != nil || value == "" {
			job.Output.WriteLine(fmt.Sprintf("%s: no API key configured, skipping", tool.Label()))
			logger.Info("skipping tool, api key not configured", "setting", spec.APIKeySetting)
			return nil
		}
		apiKey = value
	}

	vars := map[string]string{
		"domain":  job.Scan.Domain,
		"api_key": apiKey,
	}

	client := e.clientFor(spec)

	endpoint := spec.URL
	if spec.IndexURL != "" {
		resolved, err := e.resolveIndex(ctx, client, spec.IndexURL)
		if err != nil {
			job.Output.WriteLine("Error resolving API index")
			return errors.Wrapf(err, "%s index discovery", tool.Name)
		}
		endpoint = resolved
		job.Output.WriteLine(fmt.Sprintf("Using index: %s", resolved))
	}
	endpoint = common.ExpandString(endpoint, vars)
	if endpoint == "" {
		return errors.Wrapf(domain.ErrInvalidToolSpec, "%s has no url", tool.Name)
	}

	headers := common.ExpandMap(spec.Headers, vars)
	if spec.APIKeyHeader != "" && apiKey != "" {
		if headers == nil {
			headers = make(map[string]string)
		}
		headers[spec.APIKeyHeader] = apiKey
	}
	if spec.BasicAuthSetting != "" {
		cred, err := job.Settings.Setting(ctx, spec.BasicAuthSetting)
		if err != nil || !strings.Contains(cred, ":") {
			job.Output.WriteLine("Invalid auth key format (expected id:secret)")
			logger.Warn("skipping tool, unusable basic auth credential", "setting", spec.BasicAuthSetting)
			return nil
		}
		id, secret, _ := strings.Cut(cred, ":")
		if headers == nil {
			headers = make(map[string]string)
		}
		headers["Authorization"] = httpclient.BasicAuth(id, secret)
	}

	params := common.ExpandMap(spec.Params, vars)
	if spec.APIKeyParam != "" && apiKey != "" {
		if params == nil {
			params = make(map[string]string)
		}
		params[spec.APIKeyParam] = apiKey
	}

	found := make(map[string]struct{})
	stopped := false
	pageURL := endpoint
	maxPages := defaultMaxPages
	if spec.Pagination != nil && spec.Pagination.MaxPages > 0 {
		maxPages = spec.Pagination.MaxPages
	}

	for page := 0; pageURL != "" && page < maxPages; page++ {
		if job.Stop.Stopped() {
			stopped = true
			break
		}

		requestURL, err := withQuery(pageURL, params)
		if err != nil {
			return errors.Wrapf(err, "%s request url", tool.Name)
		}
		logger.Debug("requesting page", "url", requestURL, "page", page)

		resp, err := client.Get(ctx, requestURL, headers)
		if err != nil {
			job.Output.WriteLine(requestFailureLine(err))
			return errors.Wrapf(err, "%s request", tool.Name)
		}

		// Un 404 significa que la fuente no tiene nada para este dominio.
		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			break
		}
		if err := httpclient.CheckStatus(resp); err != nil {
			resp.Body.Close()
			job.Output.WriteLine(statusLine(err))
			return errors.Wrapf(err, "%s", tool.Name)
		}

		body, err := httpclient.ReadBody(resp)
		if err != nil {
			return errors.Wrapf(err, "%s response", tool.Name)
		}

		payload, err := decode(body, spec.ResponseType)
		if err != nil {
			job.Output.WriteLine("Invalid API response")
			return errors.Wrapf(errors.ErrInvalidResponse, "%s: %v", tool.Name, err)
		}

		for _, hostname := range extract(payload, spec.Extract, vars) {
			found[hostname] = struct{}{}
		}

		pageURL = nextPage(payload, spec.Pagination)
		if pageURL != "" {
			// La URL del cursor ya trae su propia query.
			params = nil
		}
	}

	job.Output.WriteLine(fmt.Sprintf("Extracted %d unique subdomains", len(found)))

	sink := common.NewSink(job.Batch, job.Output, job.Notify, common.SinkConfig{
		Source:       tool.Name,
		TargetDomain: job.Scan.Domain,
		CommitEvery:  commitEvery,
	})

	hostnames := make([]string, 0, len(found))
	for hostname := range found {
		hostnames = append(hostnames, hostname)
	}
	sort.Strings(hostnames)

	for _, hostname := range hostnames {
		if _, err := sink.Offer(hostname); err != nil {
			sink.Close()
			return err
		}
	}
	if err := sink.Close(); err != nil {
		return err
	}

	if stopped {
		return errors.Wrapf(errors.ErrScanStopped, "%s interrupted", tool.Name)
	}

	job.Output.WriteLine(fmt.Sprintf("%s completed: %d new subdomains", tool.Label(), sink.Total()))
	logger.Info("tool completed", "candidates", len(found), "new", sink.Total())
	return nil
}

// clientFor construye el cliente HTTP con el timeout de la herramienta y un
// reintento sobre fallos transitorios.
func (e *Executor) clientFor(spec domain.ToolSpec) *httpclient.Client {
	timeout := defaultTimeout
	if spec.TimeoutS > 0 {
		timeout = time.Duration(spec.TimeoutS) * time.Second
	}
	client := httpclient.New(httpclient.Config{
		Timeout:    timeout,
		MaxRetries: 1,
	}, e.logger)
	if e.transport != nil {
		client.SetTransport(e.transport)
	}
	return client
}

// resolveIndex descubre el endpoint real consultando el índice público y
// memoiza el resultado: los índices rotan una vez al mes como mucho.
func (e *Executor) resolveIndex(ctx context.Context, client *httpclient.Client, indexURL string) (string, error) {
	cacheKey := "index:" + indexURL
	if e.cache != nil {
		if value, ok := e.cache.Get(cacheKey); ok {
			if endpoint, ok := value.(string); ok {
				return endpoint, nil
			}
		}
	}

	body, err := client.FetchJSON(ctx, indexURL)
	if err != nil {
		return "", err
	}

	var indexes []map[string]interface{}
	if err := json.Unmarshal(body, &indexes); err != nil {
		return "", errors.Wrapf(errors.ErrInvalidResponse, "decoding index: %v", err)
	}
	if len(indexes) == 0 {
		return "", errors.Wrap(errors.ErrInvalidResponse, "index is empty")
	}
	endpoint, _ := indexes[0]["cdx-api"].(string)
	if endpoint == "" {
		return "", errors.Wrap(errors.ErrInvalidResponse, "index entry has no cdx-api endpoint")
	}

	if e.cache != nil {
		e.cache.Set(cacheKey, endpoint, indexCacheTTL)
	}
	return endpoint, nil
}

// withQuery añade los params a la URL conservando la query que ya tenga.
func withQuery(rawURL string, params map[string]string) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// decode interpreta el cuerpo según el formato declarado.
func decode(body []byte, kind domain.ResponseType) (interface{}, error) {
	switch kind {
	case domain.ResponseTypeJSONL:
		var items []interface{}
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var item interface{}
			if err := json.Unmarshal([]byte(line), &item); err != nil {
				// Las fuentes jsonl intercalan líneas basura; se ignoran.
				continue
			}
			items = append(items, item)
		}
		return items, nil
	case domain.ResponseTypeText:
		return string(body), nil
	default:
		var payload interface{}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}
		return payload, nil
	}
}

// extract saca hostnames crudos del payload según la estrategia declarada.
func extract(payload interface{}, spec domain.ExtractSpec, vars map[string]string) []string {
	switch spec.Strategy {
	case domain.ExtractJSONPath:
		return extractJSONPath(payload, spec, vars)
	case domain.ExtractURLHosts:
		return extractURLHosts(payload, spec)
	default:
		return extractFields(payload, spec)
	}
}

// extractFields lee campos concretos de cada objeto de una lista.
func extractFields(payload interface{}, spec domain.ExtractSpec) []string {
	items, ok := payload.([]interface{})
	if !ok {
		return nil
	}

	var out []string
	for _, raw := range items {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		for _, field := range spec.Fields {
			value, _ := obj[field].(string)
			if value == "" {
				continue
			}
			pieces := []string{value}
			if spec.SplitOnNewline {
				pieces = strings.Split(value, "\n")
			}
			for _, piece := range pieces {
				piece = strings.ToLower(strings.TrimSpace(piece))
				if spec.StripWildcard {
					piece = validator.StripWildcard(piece)
				}
				if piece != "" {
					out = append(out, piece)
				}
			}
		}
	}
	return out
}

// extractJSONPath navega un path con puntos, aplanando listas de objetos, y
// formatea cada valor con subdomain_format si está declarado.
func extractJSONPath(payload interface{}, spec domain.ExtractSpec, vars map[string]string) []string {
	path := strings.ReplaceAll(spec.JSONPath, "[*]", "")
	current := payload

	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		switch node := current.(type) {
		case map[string]interface{}:
			current = node[part]
		case []interface{}:
			flat := make([]interface{}, 0, len(node))
			for _, item := range node {
				obj, ok := item.(map[string]interface{})
				if !ok {
					continue
				}
				switch value := obj[part].(type) {
				case []interface{}:
					flat = append(flat, value...)
				case nil:
				default:
					flat = append(flat, value)
				}
			}
			current = flat
		default:
			current = nil
		}
	}

	values, ok := current.([]interface{})
	if !ok {
		if current == nil {
			return nil
		}
		values = []interface{}{current}
	}

	var out []string
	for _, raw := range values {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if spec.StripWildcard {
			s = validator.StripWildcard(s)
		}
		if s == "" {
			continue
		}
		if spec.SubdomainFormat != "" {
			vars["value"] = s
			s = common.ExpandString(spec.SubdomainFormat, vars)
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// extractURLHosts saca el host de URLs presentes en una lista de strings,
// de objetos con un campo declarado, o de listas anidadas (primera columna).
func extractURLHosts(payload interface{}, spec domain.ExtractSpec) []string {
	items, ok := payload.([]interface{})
	if ok {
		if spec.SkipFirst && len(items) > 0 {
			items = items[1:]
		}
	} else {
		items = []interface{}{payload}
	}

	var out []string
	for _, item := range items {
		var candidate string
		switch v := item.(type) {
		case map[string]interface{}:
			if spec.Field != "" {
				candidate, _ = v[spec.Field].(string)
			}
		case []interface{}:
			if len(v) > 0 {
				candidate, _ = v[0].(string)
			}
		case string:
			candidate = v
		}
		if candidate == "" {
			continue
		}

		match := urlHostRegex.FindStringSubmatch(candidate)
		if match == nil {
			continue
		}
		host := strings.ToLower(strings.TrimSpace(match[1]))
		host = validator.HostWithoutPort(host)
		if host != "" {
			out = append(out, host)
		}
	}
	return out
}

// nextPage resuelve la URL de la página siguiente navegando next_path sobre
// el payload decodificado. Vacío si no hay más páginas.
func nextPage(payload interface{}, p *domain.PaginationSpec) string {
	if p == nil || p.NextPath == "" {
		return ""
	}
	current := payload
	for _, part := range strings.Split(p.NextPath, ".") {
		node, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current = node[part]
	}
	next, _ := current.(string)
	return next
}

// statusLine traduce el error de estado a la línea del feed.
func statusLine(err error) string {
	switch {
	case errors.Is(err, errors.ErrUnauthorized):
		return "Authentication failed"
	case errors.Is(err, errors.ErrRateLimit):
		return "Rate limit exceeded"
	default:
		var upstream *errors.UpstreamError
		if errors.As(err, &upstream) {
			return upstream.Error()
		}
		return "API error"
	}
}

// requestFailureLine distingue timeouts de otros fallos de transporte.
func requestFailureLine(err error) string {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return "Request timeout"
	}
	return "Request error"
}
