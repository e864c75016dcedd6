package services

import (
	"strings"

	"github.com/fundopatronos/carreiras-api/internal/models"
)

// DefaultApprovedDomains are the email domains that skip manual review
var DefaultApprovedDomains = map[models.Role][]string{
	models.RoleApplicant: {"dac.unicamp.br", "patronos.org"},
	models.RoleMentor:    {"patronos.org"},
}

// ApprovalPolicy decides the initial status of a new identity. The domain
// table is fixed at construction; evaluation is pure.
type ApprovalPolicy struct {
	domains map[models.Role]map[string]struct{}
}

// NewApprovalPolicy builds a policy from a role -> domains table.
// Roles missing from overrides keep their default domains.
func NewApprovalPolicy(overrides map[models.Role][]string) *ApprovalPolicy {
	p := &ApprovalPolicy{domains: make(map[models.Role]map[string]struct{})}

	for role, domains := range DefaultApprovedDomains {
		if o, ok := overrides[role]; ok {
			domains = o
		}
		set := make(map[string]struct{}, len(domains))
		for _, d := range domains {
			d = strings.ToLower(strings.TrimSpace(d))
			if d != "" {
				set[d] = struct{}{}
			}
		}
		p.domains[role] = set
	}

	return p
}

// EvaluateInitialStatus maps (email, role, channel) to a starting status.
// Every input yields a status; anything unrecognised lands in manual review.
func (p *ApprovalPolicy) EvaluateInitialStatus(email string, role models.Role, channel models.Channel) models.Status {
	domain, ok := emailDomain(email)
	if !ok {
		return models.StatusPendingApproval
	}

	approved, ok := p.domains[role]
	if !ok {
		return models.StatusPendingApproval
	}
	if _, ok := approved[domain]; !ok {
		return models.StatusPendingApproval
	}

	switch channel {
	case models.ChannelFederated, models.ChannelLink:
		// Provider already proved the mailbox
		return models.StatusActive
	case models.ChannelPassword:
		return models.StatusPendingConfirmation
	default:
		return models.StatusPendingApproval
	}
}

// emailDomain returns the lower-cased domain of a well-formed address
func emailDomain(email string) (string, bool) {
	local, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "", false
	}
	return strings.ToLower(domain), true
}
