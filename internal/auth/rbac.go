package auth

import (
	"strings"

	"sgd-certification-service/internal/domain"
)

const (
	PermExamTake           = "exam:take"
	PermResultsViewOwn     = "results:view-own"
	PermResultsWrite       = "results:write"
	PermCertificatesVerify = "certificates:verify"
	PermCertificatesManage = "certificates:manage"
	PermStatsView          = "stats:view"
)

var RolePermissions = map[domain.Role][]string{
	domain.RoleCandidate: {
		PermExamTake,
		PermResultsViewOwn,
	},
	domain.RoleVerifier: {
		PermCertificatesVerify,
	},
	domain.RoleAdmin: {
		"*",
	},
}

type Checker struct {
	RolePermissions map[domain.Role][]string
}

func NewChecker(rp map[domain.Role][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	return &Checker{RolePermissions: rp}
}

func (c *Checker) Has(role domain.Role, perm string) bool {
	for _, p := range c.RolePermissions[role] {
		if matchPerm(p, perm) {
			return true
		}
	}
	return false
}

func matchPerm(pattern, perm string) bool {
	if pattern == "*" || pattern == perm {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(perm, strings.TrimSuffix(pattern, "*"))
	}
	return false
}
