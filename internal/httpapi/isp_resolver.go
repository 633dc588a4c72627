package httpapi

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantgate/internal/auth"
	"github.com/wolfeidau/tenantgate/internal/store"
	"github.com/wolfeidau/tenantgate/internal/telemetry"
)

// enrichIspContext attaches the principal's ISP organization record to the
// request context. It is an enrichment, not a gate: lookup misses are
// logged and counted but never abort the request, since some principal
// kinds legitimately operate without an ISP assignment. This is the one
// place a lookup miss is deliberately swallowed; the metric exists so a
// principal population that unexpectedly lacks assignments shows up in
// monitoring.
func (p *Pipeline) enrichIspContext(ctx context.Context, principal *auth.Principal) context.Context {
	if principal == nil || principal.IsSuper() {
		return ctx
	}

	if principal.IspID == "" {
		log.Debug().
			Str("principal_id", principal.PrincipalID.String()).
			Msg("Principal has no ISP assignment, continuing without ISP context")
		return ctx
	}

	org, err := p.orgs.GetByTenant(ctx, principal.IspID)
	if err != nil {
		telemetry.GetMetrics().IspLookupMissTotal.Add(ctx, 1)
		if errors.Is(err, store.ErrOrganizationNotFound) {
			log.Warn().
				Str("principal_id", principal.PrincipalID.String()).
				Str("isp_id", principal.IspID).
				Msg("No organization record for principal's ISP, continuing without ISP context")
		} else {
			// Repository failures are swallowed the same way: this layer
			// must never turn an enrichment failure into a request failure.
			log.Error().Err(err).
				Str("principal_id", principal.PrincipalID.String()).
				Str("isp_id", principal.IspID).
				Msg("ISP lookup failed, continuing without ISP context")
		}
		return ctx
	}

	return WithIsp(ctx, org)
}
