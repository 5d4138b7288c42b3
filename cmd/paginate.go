package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// pageRequest mirrors the draw/start/length protocol of the portal's table
// widget. draw is a request sequence number the server echoes back; it grows
// by one per request whether or not the request succeeds.
type pageRequest struct {
	draw           int
	start          int
	length         int
	numeroContrato string
}

type searchResponse struct {
	Data [][]string `json:"data"`
}

func (p pageRequest) form(orgao string) url.Values {
	values := url.Values{}
	values.Set("draw", strconv.Itoa(p.draw))
	values.Set("start", strconv.Itoa(p.start))
	values.Set("length", strconv.Itoa(p.length))
	values.Set("orgao", fmt.Sprintf(`["%s"]`, orgao))
	if p.numeroContrato != "" {
		values.Set("numerocontrato", p.numeroContrato)
	}
	return values
}

// searchPage posts one page request to the AJAX search endpoint. When the
// portal rejects the token (expired session), the session is re-opened once
// and the request replayed with the fresh token.
func searchPage(ctx context.Context, session *portalSession, exec *requestExecutor, page pageRequest) (*searchResponse, error) {
	resp, err := postSearch(ctx, session, exec, page)
	if isTokenRejected(err) {
		if refreshErr := session.open(ctx, exec); refreshErr != nil {
			return nil, refreshErr
		}
		resp, err = postSearch(ctx, session, exec, page)
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded searchResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&decoded); decodeErr != nil {
		return nil, decodeErr
	}
	return &decoded, nil
}

func postSearch(ctx context.Context, session *portalSession, exec *requestExecutor, page pageRequest) (*http.Response, error) {
	body := page.form(session.orgao).Encode()
	return exec.execute(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, session.searchURL(), strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		session.setSearchHeaders(req)
		return req, nil
	})
}

// pageCollector drives the search endpoint page by page until the portal
// returns an empty or short page, or the safety ceiling is reached. The
// ceiling bounds worst-case run time against an endpoint that never runs
// dry; it is not needed for correctness.
type pageCollector struct {
	session  *portalSession
	exec     *requestExecutor
	length   int
	maxPages int
	onPage   func(page, count int)
}

// collectAll yields each raw row batch to onBatch and returns the cumulative
// row count. A failed page fetch aborts collection; the pagination loop has
// no per-page skip semantics.
func (c *pageCollector) collectAll(ctx context.Context, onBatch func(rows [][]string) error) (int, error) {
	start := 0
	draw := 1
	total := 0
	for page := 1; ; page++ {
		resp, err := searchPage(ctx, c.session, c.exec, pageRequest{draw: draw, start: start, length: c.length})
		if err != nil {
			return total, err
		}
		if len(resp.Data) == 0 {
			return total, nil
		}
		if err := onBatch(resp.Data); err != nil {
			return total, err
		}
		total += len(resp.Data)
		if c.onPage != nil {
			c.onPage(page, len(resp.Data))
		}
		start += c.length
		draw++
		if len(resp.Data) < c.length {
			return total, nil
		}
		if c.maxPages > 0 && page >= c.maxPages {
			return total, nil
		}
	}
}
