package graph

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"outlookmcp/internal/auth"
	"outlookmcp/internal/instrumentation"
)

// ListFolders lists the user's top-level mail folders, or the children of
// parentID when given.
func (c *Client) ListFolders(ctx context.Context, parentID string, opts ListOptions) (_ []MailFolder, err error) {
	start := time.Now()
	defer func() {
		c.observe(ctx, instrumentation.DomainFolder, instrumentation.OperationList, start, err)
	}()

	path := "/me/mailFolders"
	if parentID != "" {
		path = "/me/mailFolders/" + url.PathEscape(parentID) + "/childFolders"
	}

	var envelope listEnvelope[MailFolder]
	if err = c.do(ctx, "GET", path, opts.Values(), nil, &envelope, auth.MailReadScopes); err != nil {
		return nil, err
	}
	return envelope.Value, nil
}

// CreateFolder creates a mail folder. With an empty parentID the folder is
// created at the top level.
func (c *Client) CreateFolder(ctx context.Context, displayName, parentID string) (_ *MailFolder, err error) {
	if displayName == "" {
		return nil, fmt.Errorf("folder display name must not be empty")
	}

	start := time.Now()
	defer func() {
		c.observe(ctx, instrumentation.DomainFolder, instrumentation.OperationCreate, start, err)
	}()

	path := "/me/mailFolders"
	if parentID != "" {
		path = "/me/mailFolders/" + url.PathEscape(parentID) + "/childFolders"
	}

	var created MailFolder
	body := MailFolder{DisplayName: displayName}
	if err = c.do(ctx, "POST", path, nil, body, &created, auth.FolderScopes); err != nil {
		return nil, err
	}
	return &created, nil
}
