package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketbot/internal/observability"
	"github.com/spec-kit/ticketbot/internal/platform"
	apperrors "github.com/spec-kit/ticketbot/pkg/util/errorutil"
)

// OperatorLog reports failures to the tenant's error-log channel when one is
// configured and always to the process log.
type OperatorLog struct {
	platform platform.Platform
	tenants  *TenantService
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewOperatorLog constructs the operator log.
func NewOperatorLog(p platform.Platform, tenants *TenantService, metrics *observability.Metrics, logger *zap.Logger) *OperatorLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OperatorLog{platform: p, tenants: tenants, metrics: metrics, logger: logger}
}

// StorageFailure records a failed durable operation and returns the
// user-facing error for it.
func (o *OperatorLog) StorageFailure(ctx context.Context, tenantID, op string, err error, fields ...zap.Field) error {
	o.metrics.RecordStorageFailure(op)
	o.Report(ctx, tenantID, "Storage failure: "+op, err, fields...)
	return apperrors.NewStorageFailure(op, err)
}

// PlatformFailure records a failed platform call and returns the user-facing
// error for it.
func (o *OperatorLog) PlatformFailure(ctx context.Context, tenantID, op string, err error, fields ...zap.Field) error {
	o.Report(ctx, tenantID, "Platform failure: "+op, err, fields...)
	return apperrors.NewPlatformFailure(op, err)
}

// Report logs err and mirrors it to the tenant's error-log channel. Only the
// cached tenant configuration is consulted so a storage outage cannot block
// the report.
func (o *OperatorLog) Report(ctx context.Context, tenantID, title string, err error, fields ...zap.Field) {
	logFields := append([]zap.Field{zap.String("tenant_id", tenantID), zap.Error(err)}, fields...)
	o.logger.Error(title, logFields...)

	if o.platform == nil || o.tenants == nil {
		return
	}
	cfg, ok := o.tenants.Cached(tenantID)
	if !ok || cfg.ErrorLogChannelID == "" {
		return
	}
	if _, postErr := o.platform.PostMessage(ctx, cfg.ErrorLogChannelID, formatReport(title, err, fields)); postErr != nil {
		o.logger.Warn("could not post to error log channel",
			zap.String("tenant_id", tenantID),
			zap.String("channel_id", cfg.ErrorLogChannelID),
			zap.Error(postErr))
	}
}

func formatReport(title string, err error, fields []zap.Field) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", title)
	if err != nil {
		fmt.Fprintf(&b, "Error: `%v`\n", err)
	}
	for _, f := range fields {
		if f.String != "" {
			fmt.Fprintf(&b, "%s: %s\n", f.Key, f.String)
		}
	}
	return b.String()
}
