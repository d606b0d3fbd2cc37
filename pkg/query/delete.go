package query

import "go.uber.org/zap"

// executeDelete recognizes deletes but executes none: the result reports zero
// affected rows and is flagged Unimplemented.
func (g *Gateway) executeDelete(c Classification, params Params) (*Result, error) {
	g.logger.Warn("Delete has no executable shape, returning zero-effect result",
		zap.String("table", c.Table),
		zap.Int("param_count", len(params)))
	return Unimplemented(), nil
}
