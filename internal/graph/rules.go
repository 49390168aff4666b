package graph

import (
	"context"
	"fmt"
	"time"

	"outlookmcp/internal/auth"
	"outlookmcp/internal/instrumentation"
)

const rulesPath = "/me/mailFolders/inbox/messageRules"

// ListRules lists the user's inbox rules.
func (c *Client) ListRules(ctx context.Context) (_ []MessageRule, err error) {
	start := time.Now()
	defer func() { c.observe(ctx, instrumentation.DomainRule, instrumentation.OperationList, start, err) }()

	var envelope listEnvelope[MessageRule]
	if err = c.do(ctx, "GET", rulesPath, nil, nil, &envelope, auth.RuleScopes); err != nil {
		return nil, err
	}
	return envelope.Value, nil
}

// CreateRule creates an inbox rule and returns the created resource.
func (c *Client) CreateRule(ctx context.Context, rule MessageRule) (_ *MessageRule, err error) {
	if rule.DisplayName == "" {
		return nil, fmt.Errorf("rule display name must not be empty")
	}
	if rule.Actions == nil {
		return nil, fmt.Errorf("rule must define at least one action")
	}

	start := time.Now()
	defer func() {
		c.observe(ctx, instrumentation.DomainRule, instrumentation.OperationCreate, start, err)
	}()

	var created MessageRule
	if err = c.do(ctx, "POST", rulesPath, nil, rule, &created, auth.RuleScopes); err != nil {
		return nil, err
	}
	return &created, nil
}
