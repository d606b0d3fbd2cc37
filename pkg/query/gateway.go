package query

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
	"github.com/ekaya-inc/querybridge/pkg/apperrors"
	"github.com/ekaya-inc/querybridge/pkg/logging"
)

// DefaultElevatedRoles may act on any comment.
var DefaultElevatedRoles = []string{"admin", "manager"}

// Gateway executes SQL-shaped statements against a Backend that does not
// speak SQL. It holds no per-call state and is safe for concurrent use.
type Gateway struct {
	backend       backend.Backend
	logger        *zap.Logger
	now           func() time.Time
	elevatedRoles map[string]bool
	screenParams  bool
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock replaces the clock used for audit stamps and expiry comparisons.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// WithElevatedRoles sets the role names that pass the last step of the
// comment permission chain.
func WithElevatedRoles(roles ...string) Option {
	return func(g *Gateway) {
		g.elevatedRoles = make(map[string]bool, len(roles))
		for _, r := range roles {
			g.elevatedRoles[r] = true
		}
	}
}

// WithParamScreening toggles libinjection screening of string params.
func WithParamScreening(enabled bool) Option {
	return func(g *Gateway) {
		g.screenParams = enabled
	}
}

// NewGateway creates a Gateway. A nil backend is accepted so callers can wire
// the gateway before configuration is known; every call then fails with
// apperrors.ErrBackendNotConfigured.
func NewGateway(b backend.Backend, logger *zap.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		backend:      b,
		logger:       logger.Named("query"),
		now:          time.Now,
		screenParams: true,
	}
	WithElevatedRoles(DefaultElevatedRoles...)(g)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Execute classifies text and runs the matching handler. Statements outside
// the catalog are logged and yield an Unimplemented zero-effect result. Backend
// failures of recognized statements are returned unchanged.
func (g *Gateway) Execute(ctx context.Context, text string, params []any) (*Result, error) {
	if g.backend == nil {
		return nil, fmt.Errorf("execute statement: %w", apperrors.ErrBackendNotConfigured)
	}
	g.screen(params)

	c, ok := Classify(text, params)
	if !ok {
		g.logger.Warn("Statement not recognized, returning empty result",
			zap.String("reason", string(c.Reason)),
			zap.String("intent", c.Intent.String()),
			zap.String("table", c.Table),
			zap.String("query", logging.SanitizeQuery(text)),
			zap.Int("param_count", len(params)))
		return Unimplemented(), nil
	}

	g.logger.Debug("Executing statement",
		zap.String("shape", c.Shape.String()),
		zap.String("table", c.Table),
		zap.Any("params", logging.SanitizeParams(params, paramNames(c.Shape))))

	return g.dispatch(ctx, c, text, params)
}

// ExecuteShape runs a known shape with positional params, skipping text
// classification. UpdateGeneric needs the statement text and is rejected.
func (g *Gateway) ExecuteShape(ctx context.Context, shape Shape, params []any) (*Result, error) {
	if g.backend == nil {
		return nil, fmt.Errorf("execute %s: %w", shape, apperrors.ErrBackendNotConfigured)
	}
	rule, ok := Lookup(shape)
	if !ok {
		return nil, fmt.Errorf("unknown shape %d: %w", int(shape), apperrors.ErrInvalidParams)
	}
	if shape == UpdateGeneric {
		return nil, fmt.Errorf("%s requires statement text: %w", shape, apperrors.ErrInvalidParams)
	}
	g.screen(params)

	c := Classification{Intent: rule.Intent, Table: rule.Table, Shape: shape}
	return g.dispatch(ctx, c, "", params)
}

// ExecuteNamed runs a known shape with params given by name. Names follow
// Rule.Params; missing names bind nil.
func (g *Gateway) ExecuteNamed(ctx context.Context, shape Shape, named map[string]any) (*Result, error) {
	rule, ok := Lookup(shape)
	if !ok {
		return nil, fmt.Errorf("unknown shape %d: %w", int(shape), apperrors.ErrInvalidParams)
	}
	return g.ExecuteShape(ctx, shape, positional(rule.Params, named))
}

func (g *Gateway) dispatch(ctx context.Context, c Classification, text string, params Params) (*Result, error) {
	switch c.Intent {
	case IntentSelect:
		return g.executeSelect(ctx, c.Shape, params)
	case IntentInsert:
		return g.executeInsert(ctx, c.Shape, params)
	case IntentUpdate:
		return g.executeUpdate(ctx, c, text, params)
	case IntentDelete:
		return g.executeDelete(c, params)
	default:
		return Unimplemented(), nil
	}
}

func (g *Gateway) screen(params []any) {
	if !g.screenParams {
		return
	}
	for _, f := range ScreenParams(params) {
		g.logger.Warn("SECURITY: parameter matches SQL injection pattern",
			zap.Int("position", f.Position),
			zap.String("fingerprint", f.Fingerprint))
	}
}

// stamp returns the current time at millisecond precision, which every
// backend stores without loss.
func (g *Gateway) stamp() time.Time {
	return g.now().UTC().Truncate(time.Millisecond)
}

func paramNames(shape Shape) []string {
	if rule, ok := Lookup(shape); ok {
		return rule.Params
	}
	return nil
}
