package cmd

import (
	"context"
	"regexp"

	"github.com/fatih/color"
)

// Detail-page links embedded in result cells carry the internal id.
var contractDetailPattern = regexp.MustCompile(`/transparencia/contratos/(\d+)`)

const resolverPageLength = 10

// idResolver maps a contract number to the portal-assigned internal id
// needed to fetch its detail page. Lookups are expensive round trips and the
// mapping is stable within a run, so results (including misses) are cached
// for the life of the resolver.
type idResolver struct {
	session *portalSession
	exec    *requestExecutor
	cache   map[string]string
}

func newIDResolver(session *portalSession, exec *requestExecutor) *idResolver {
	return &idResolver{session: session, exec: exec, cache: make(map[string]string)}
}

// resolve returns the internal id for numeroContrato, or "" when the portal
// does not index the contract under that number. Transport failures also
// degrade to "" so one unreachable lookup never aborts the batch.
func (r *idResolver) resolve(ctx context.Context, numeroContrato string) string {
	if id, ok := r.cache[numeroContrato]; ok {
		return id
	}
	id := r.lookup(ctx, numeroContrato)
	r.cache[numeroContrato] = id
	return id
}

func (r *idResolver) lookup(ctx context.Context, numeroContrato string) string {
	resp, err := searchPage(ctx, r.session, r.exec, pageRequest{
		draw:           1,
		start:          0,
		length:         resolverPageLength,
		numeroContrato: numeroContrato,
	})
	if err != nil {
		color.Yellow("busca de id falhou para %s: %v", numeroContrato, err)
		return ""
	}
	for _, row := range resp.Data {
		for _, cell := range row {
			if m := contractDetailPattern.FindStringSubmatch(cell); m != nil {
				return m[1]
			}
		}
	}
	return ""
}
