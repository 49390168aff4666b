package graph

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"outlookmcp/internal/auth"
	"outlookmcp/internal/instrumentation"
)

// ListMessages lists messages in a mail folder. folderID may be a folder id
// or a well-known name ("inbox", "sentitems"); empty means the whole mailbox.
func (c *Client) ListMessages(ctx context.Context, folderID string, opts ListOptions) (_ []Message, err error) {
	start := time.Now()
	defer func() { c.observe(ctx, instrumentation.DomainMail, instrumentation.OperationList, start, err) }()

	path := "/me/messages"
	if folderID != "" {
		path = "/me/mailFolders/" + url.PathEscape(folderID) + "/messages"
	}

	var envelope listEnvelope[Message]
	if err = c.do(ctx, "GET", path, opts.Values(), nil, &envelope, auth.MailReadScopes); err != nil {
		return nil, err
	}
	return envelope.Value, nil
}

// GetMessage retrieves a single message by id.
func (c *Client) GetMessage(ctx context.Context, messageID string) (_ *Message, err error) {
	if messageID == "" {
		return nil, fmt.Errorf("message id must not be empty")
	}

	start := time.Now()
	defer func() { c.observe(ctx, instrumentation.DomainMail, instrumentation.OperationGet, start, err) }()

	var msg Message
	if err = c.do(ctx, "GET", "/me/messages/"+url.PathEscape(messageID), nil, nil, &msg, auth.MailReadScopes); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendMessage sends a message via /me/sendMail. Graph returns 202 with no
// body on success.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (err error) {
	if len(req.Message.ToRecipients) == 0 {
		return fmt.Errorf("message must have at least one recipient")
	}

	start := time.Now()
	defer func() { c.observe(ctx, instrumentation.DomainMail, instrumentation.OperationSend, start, err) }()

	return c.do(ctx, "POST", "/me/sendMail", nil, req, nil, auth.MailWriteScopes)
}

// MoveMessage moves a message to another folder and returns the moved copy
// (the message id changes on move).
func (c *Client) MoveMessage(ctx context.Context, messageID, destinationFolderID string) (_ *Message, err error) {
	if messageID == "" || destinationFolderID == "" {
		return nil, fmt.Errorf("message id and destination folder id must not be empty")
	}

	start := time.Now()
	defer func() { c.observe(ctx, instrumentation.DomainMail, instrumentation.OperationMove, start, err) }()

	var moved Message
	body := moveMessageRequest{DestinationID: destinationFolderID}
	if err = c.do(ctx, "POST", "/me/messages/"+url.PathEscape(messageID)+"/move", nil, body, &moved, auth.MailWriteScopes); err != nil {
		return nil, err
	}
	return &moved, nil
}
