package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketbot/internal/domain"
)

// GatewayConfig points the client at the platform gateway sidecar.
type GatewayConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Gateway talks to the platform through the gateway's REST surface.
type Gateway struct {
	baseURL string
	token   string
	timeout time.Duration
	logger  *zap.Logger
}

var _ Platform = (*Gateway)(nil)

// NewGateway builds the client.
func NewGateway(cfg GatewayConfig, logger *zap.Logger) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		timeout: timeout,
		logger:  logger,
	}
}

// StatusError is a non-2xx gateway response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("platform gateway %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

type idResponse struct {
	ID string `json:"id"`
}

type postMessageRequest struct {
	Content string `json:"content"`
}

func (g *Gateway) CreateChannel(ctx context.Context, spec ChannelSpec) (*Channel, error) {
	var out Channel
	path := "/tenants/" + url.PathEscape(spec.TenantID) + "/channels"
	if err := g.do(ctx, fiber.MethodPost, path, spec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *Gateway) SetMemberAccess(ctx context.Context, channelID, userID string, access Access) error {
	path := "/channels/" + url.PathEscape(channelID) + "/members/" + url.PathEscape(userID) + "/access"
	return g.do(ctx, fiber.MethodPut, path, access, nil)
}

func (g *Gateway) SetRoleAccess(ctx context.Context, channelID, roleID string, access Access) error {
	path := "/channels/" + url.PathEscape(channelID) + "/roles/" + url.PathEscape(roleID) + "/access"
	return g.do(ctx, fiber.MethodPut, path, access, nil)
}

func (g *Gateway) DeleteChannel(ctx context.Context, channelID, reason string) error {
	path := "/channels/" + url.PathEscape(channelID) + "?reason=" + url.QueryEscape(reason)
	return g.do(ctx, fiber.MethodDelete, path, nil, nil)
}

func (g *Gateway) PostMessage(ctx context.Context, channelID, content string) (string, error) {
	var out idResponse
	path := "/channels/" + url.PathEscape(channelID) + "/messages"
	if err := g.do(ctx, fiber.MethodPost, path, postMessageRequest{Content: content}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (g *Gateway) RecentMessages(ctx context.Context, channelID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	path := "/channels/" + url.PathEscape(channelID) + "/messages?limit=" + strconv.Itoa(limit)
	if err := g.do(ctx, fiber.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gateway) ListChannels(ctx context.Context, tenantID, categoryID string) ([]Channel, error) {
	var out []Channel
	path := "/tenants/" + url.PathEscape(tenantID) + "/channels"
	if categoryID != "" {
		path += "?category=" + url.QueryEscape(categoryID)
	}
	if err := g.do(ctx, fiber.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gateway) agent(method, target string) *fiber.Agent {
	switch method {
	case fiber.MethodPost:
		return fiber.Post(target)
	case fiber.MethodPut:
		return fiber.Put(target)
	case fiber.MethodDelete:
		return fiber.Delete(target)
	default:
		return fiber.Get(target)
	}
}

func (g *Gateway) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := g.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	a := g.agent(method, g.baseURL+path)
	a.Set(fiber.HeaderAuthorization, "Bearer "+g.token)
	a.Timeout(timeout)
	if body != nil {
		a.JSON(body)
	}
	if err := a.Parse(); err != nil {
		return fmt.Errorf("platform gateway %s %s: %w", method, path, err)
	}

	var (
		status int
		raw    []byte
		errs   []error
	)
	if out != nil {
		status, raw, errs = a.Struct(out)
	} else {
		status, raw, errs = a.Bytes()
	}
	if status == http.StatusNotFound {
		return ErrChannelNotFound
	}
	if status >= http.StatusMultipleChoices {
		return &StatusError{Method: method, Path: path, Status: status, Body: string(raw)}
	}
	if len(errs) > 0 {
		g.logger.Warn("platform gateway call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Errors("errors", errs))
		return fmt.Errorf("platform gateway %s %s: %w", method, path, errors.Join(errs...))
	}
	return nil
}
