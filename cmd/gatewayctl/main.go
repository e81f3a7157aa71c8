package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/schoolgate/internal/resolver"
	"github.com/dropDatabas3/schoolgate/internal/upstream"
)

type client struct {
	BaseURL string
	HTTP    *http.Client
}

func (c *client) get(path string, cookies []*http.Cookie, headers map[string]string) (int, []byte, error) {
	req, err := http.NewRequest(http.MethodGet, strings.TrimRight(c.BaseURL, "/")+path, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, b, nil
}

func printJSON(w io.Writer, body []byte) {
	var out bytes.Buffer
	if json.Indent(&out, body, "", "  ") == nil {
		fmt.Fprintln(w, out.String())
		return
	}
	fmt.Fprintln(w, string(body))
}

// parsePairs convierte ["k=v", ...] en un mapa. El primer valor de cada clave gana.
func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid pair %q, want key=value", p)
		}
		if _, dup := out[k]; !dup {
			out[k] = v
		}
	}
	return out, nil
}

type resolveOutput struct {
	Authenticated  bool   `json:"authenticated"`
	AccessToken    string `json:"accessToken,omitempty"`
	TenantID       string `json:"tenantId,omitempty"`
	TenantSource   string `json:"tenantSource,omitempty"`
	BackendBaseURL string `json:"backendBaseUrl"`
}

func runResolve(cookies, headers []string, path, persisted, backend string, tenantScoped, page bool) (resolveOutput, error) {
	ck, err := parsePairs(cookies)
	if err != nil {
		return resolveOutput{}, err
	}
	hd, err := parsePairs(headers)
	if err != nil {
		return resolveOutput{}, err
	}
	h := http.Header{}
	for k, v := range hd {
		h.Set(k, v)
	}

	req := resolver.Request{Cookies: ck, Headers: h, Path: path, PersistedTenant: persisted}
	res := resolver.New(resolver.CookieNames{}, backend)

	mode := resolver.ModeDefault
	if tenantScoped {
		mode = resolver.ModeTenantScoped
	}
	rc := res.Resolve(req, mode)
	if page {
		rc.Tenant = res.PageTenant(req)
	}
	return resolveOutput{
		Authenticated:  rc.Session.Authenticated(),
		AccessToken:    rc.Session.AccessToken,
		TenantID:       rc.Tenant.ID,
		TenantSource:   string(rc.Tenant.Source),
		BackendBaseURL: rc.BackendBaseURL,
	}, nil
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	var (
		gatewayURL = envOr("SCHOOLGATE_URL", "http://localhost:8080")
		timeout    = 15 * time.Second
	)
	cl := &client{HTTP: &http.Client{Timeout: timeout}}

	root := &cobra.Command{
		Use:           "gatewayctl",
		Short:         "Herramientas de diagnóstico para el gateway escolar",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cl.BaseURL = gatewayURL
		},
	}
	root.PersistentFlags().StringVar(&gatewayURL, "gateway-url", gatewayURL, "URL base del gateway (env SCHOOLGATE_URL)")

	normalizeCmd := &cobra.Command{
		Use:   "normalize-url <url>",
		Short: "Muestra la base URL del backend normalizada",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), upstream.NormalizeBaseURL(args[0]))
		},
	}

	var (
		rsCookies, rsHeaders   []string
		rsPath, rsPersisted    string
		rsBackend              string
		rsTenantScoped, rsPage bool
	)
	resolveCmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resuelve sesión y tenant offline a partir de cookies y headers",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := runResolve(rsCookies, rsHeaders, rsPath, rsPersisted, rsBackend, rsTenantScoped, rsPage)
			if err != nil {
				return err
			}
			b, _ := json.Marshal(out)
			printJSON(cmd.OutOrStdout(), b)
			return nil
		},
	}
	resolveCmd.Flags().StringArrayVar(&rsCookies, "cookie", nil, "Cookie name=value (repetible)")
	resolveCmd.Flags().StringArrayVar(&rsHeaders, "header", nil, "Header name=value (repetible)")
	resolveCmd.Flags().StringVar(&rsPath, "path", "", "Path de la página (resolución a nivel página)")
	resolveCmd.Flags().StringVar(&rsPersisted, "persisted", "", "Tenant persistido por la UI")
	resolveCmd.Flags().StringVar(&rsBackend, "backend", envOr("BACKEND_API_URL", ""), "URL del backend")
	resolveCmd.Flags().BoolVar(&rsTenantScoped, "tenant-scoped", false, "Precedencia de token de rutas con tenant")
	resolveCmd.Flags().BoolVar(&rsPage, "page", false, "Usar resolución de tenant a nivel página (path y persistido)")

	tenantCmd := &cobra.Command{
		Use:   "tenant <id>",
		Short: "Consulta GET /api/tenants/{id} en un gateway corriendo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.get("/api/tenants/"+url.PathEscape(args[0]), nil, nil)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), body)
			if status/100 != 2 {
				return fmt.Errorf("tenant lookup failed: status=%d", status)
			}
			return nil
		},
	}

	var ssToken, ssTenant string
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Consulta GET /api/session en un gateway corriendo",
		RunE: func(cmd *cobra.Command, args []string) error {
			headers := map[string]string{}
			if ssToken != "" {
				headers["Authorization"] = "Bearer " + ssToken
			}
			var cookies []*http.Cookie
			if ssTenant != "" {
				cookies = append(cookies, &http.Cookie{Name: resolver.DefaultCookieNames().Tenant, Value: ssTenant})
			}
			status, body, err := cl.get("/api/session", cookies, headers)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), body)
			if status/100 != 2 {
				return fmt.Errorf("session failed: status=%d", status)
			}
			return nil
		},
	}
	sessionCmd.Flags().StringVar(&ssToken, "token", "", "Access token (se manda como Bearer)")
	sessionCmd.Flags().StringVar(&ssTenant, "tenant", "", "Tenant (se manda como cookie)")

	root.AddCommand(normalizeCmd, resolveCmd, tenantCmd, sessionCmd)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
