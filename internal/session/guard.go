package session

import (
	"github.com/soficodes/bloghub/internal/authz"
	"github.com/soficodes/bloghub/internal/domain/identity"
)

type DecisionKind int

const (
	// DecisionPending means the session is still settling; render nothing
	// and ask again once Restore completes.
	DecisionPending DecisionKind = iota
	DecisionAllow
	DecisionRedirect
)

// Decision is the guard's verdict for one navigation attempt.
type Decision struct {
	Kind   DecisionKind
	Target string // set on redirect
	Notice string // user-facing reason, set on redirect
}

func allow() Decision {
	return Decision{Kind: DecisionAllow}
}

func pending() Decision {
	return Decision{Kind: DecisionPending}
}

func redirect(target, notice string) Decision {
	return Decision{Kind: DecisionRedirect, Target: target, Notice: notice}
}

// Guard gates navigation on the session store. It never decides on a
// session that is still settling: callers get Pending until Restore has
// run, so a slow restore cannot bounce a signed-in user to the login
// page.
type Guard struct {
	store *Store
}

func NewGuard(store *Store) *Guard {
	return &Guard{store: store}
}

func (g *Guard) RequireAuth() Decision {
	state, _ := g.store.Snapshot()

	switch state {
	case StateUninitialized, StateRestoring:
		return pending()
	case StateAuthenticated:
		return allow()
	default:
		return redirect(TargetLogin, "Please sign in to continue.")
	}
}

// RequireRole allows only a settled, signed-in session holding the
// required role. Role checks go through the authz engine so absence and
// unknown roles deny the same everywhere.
func (g *Guard) RequireRole(required identity.Role) Decision {
	state, user := g.store.Snapshot()

	switch state {
	case StateUninitialized, StateRestoring:
		return pending()
	case StateAuthenticated:
	default:
		return redirect(TargetLogin, "Please sign in to continue.")
	}

	allowed := user != nil && user.Role == required

	if required == identity.RoleAdmin {
		allowed = authz.IsAdmin(user)
	}

	if !allowed {
		return redirect(TargetBlogHome, "You do not have access to that page.")
	}

	return allow()
}
