package query

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
)

// Access levels reported by the comment permission check.
const (
	AccessOwner     = "owner"
	AccessDelegated = "delegated"
	AccessElevated  = "elevated"
)

// commentPermission decides whether user params[1] may act on comment
// params[0]. Steps run in order ownership, delegated contract access, elevated
// role, and the first positive step returns without issuing the rest. No
// grant, or no such comment, yields no rows.
func (g *Gateway) commentPermission(ctx context.Context, params Params) (*Result, error) {
	commentID, userID := params.At(0), params.At(1)
	if commentID == nil || userID == nil {
		return Empty(), nil
	}

	comment, err := g.backend.FetchOne(ctx, "contract_comments", backend.FetchOptions{
		Filters: []backend.Filter{backend.Eq("id", commentID)},
		Columns: []string{"id", "contract_id", "user_id"},
	})
	if err != nil {
		if MapError(err) == NotFoundAsEmpty {
			return Empty(), nil
		}
		return nil, err
	}
	if sameKey(comment["user_id"], userID) {
		return grant(commentID, userID, AccessOwner), nil
	}

	delegated, err := g.backend.Count(ctx, "contract_access", []backend.Filter{
		backend.Eq("contract_id", comment["contract_id"]),
		backend.Eq("user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if delegated > 0 {
		return grant(commentID, userID, AccessDelegated), nil
	}

	user, err := g.backend.FetchOne(ctx, "users", backend.FetchOptions{
		Filters: []backend.Filter{backend.Eq("id", userID)},
		Columns: []string{"id", "role_id"},
		Embeds:  userRole,
	})
	if err != nil {
		if MapError(err) == NotFoundAsEmpty {
			return Empty(), nil
		}
		return nil, err
	}
	if role, ok := nestedField(user["role"], "name").(string); ok && g.elevatedRoles[role] {
		return grant(commentID, userID, AccessElevated), nil
	}

	return Empty(), nil
}

func grant(commentID, userID any, access string) *Result {
	return &Result{
		Rows:     []Row{{"comment_id": commentID, "user_id": userID, "access": access}},
		RowCount: 1,
	}
}

// sameKey compares ids that may arrive as different types (a JSON number
// against a stored string).
func sameKey(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
