package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const defaultBaseURL = "https://contratos.comprasnet.gov.br"

// Chrome-like UA to reduce blocks.
const portalUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

var errTokenMissing = errors.New("csrf-token meta element not found")

// portalSession owns the authenticated transport state for one run: the
// cookie jar and the anti-forgery token captured from the listing page.
// The portal binds the token to the session cookies, so both live together.
type portalSession struct {
	client  *http.Client
	baseURL string
	dataset string
	orgao   string
	token   string
}

func newPortalSession(cfg portalConfig, dataset string) *portalSession {
	jar, _ := cookiejar.New(nil)
	return &portalSession{
		client: &http.Client{
			Jar:     jar,
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		dataset: dataset,
		orgao:   cfg.Orgao,
	}
}

func (s *portalSession) listingURL() string {
	return fmt.Sprintf("%s/transparencia/%s?orgao=[%s]", s.baseURL, s.dataset, s.orgao)
}

func (s *portalSession) searchURL() string {
	return fmt.Sprintf("%s/transparencia/%s/search", s.baseURL, s.dataset)
}

func (s *portalSession) detailURL(internalID string) string {
	return fmt.Sprintf("%s/transparencia/contratos/%s", s.baseURL, internalID)
}

// open loads the listing page to pick up session cookies and captures the
// anti-forgery token from its csrf-token meta element. Calling it again
// replaces the token, which is how expired tokens are re-acquired.
func (s *portalSession) open(ctx context.Context, exec *requestExecutor) error {
	resp, err := exec.execute(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.listingURL(), nil)
		if err != nil {
			return nil, err
		}
		s.setBrowserHeaders(req)
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return err
	}
	token, ok := doc.Find(`meta[name="csrf-token"]`).First().Attr("content")
	if !ok || strings.TrimSpace(token) == "" {
		return errTokenMissing
	}
	s.token = token
	return nil
}

func (s *portalSession) currentToken() string {
	return s.token
}

func (s *portalSession) setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", portalUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7")
}

// setSearchHeaders marks a request as the AJAX call the portal's table widget
// would issue. The x-csrf-token header must carry the current token.
func (s *portalSession) setSearchHeaders(req *http.Request) {
	req.Header.Set("x-csrf-token", s.token)
	req.Header.Set("x-requested-with", "XMLHttpRequest")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Origin", s.baseURL)
	req.Header.Set("Referer", s.listingURL())
	req.Header.Set("User-Agent", portalUserAgent)
}
