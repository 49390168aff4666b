package graph

// Wire types for the Graph resources the tools touch. Only the properties
// the tools read or write are mapped; Graph tolerates absent fields.

// EmailAddress is a Graph emailAddress resource.
type EmailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// Recipient is a Graph recipient resource.
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// ItemBody is a Graph itemBody resource. ContentType is "text" or "html".
type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Message is a Graph message resource.
type Message struct {
	ID               string      `json:"id,omitempty"`
	Subject          string      `json:"subject,omitempty"`
	BodyPreview      string      `json:"bodyPreview,omitempty"`
	Body             *ItemBody   `json:"body,omitempty"`
	From             *Recipient  `json:"from,omitempty"`
	ToRecipients     []Recipient `json:"toRecipients,omitempty"`
	CcRecipients     []Recipient `json:"ccRecipients,omitempty"`
	ReceivedDateTime string      `json:"receivedDateTime,omitempty"`
	IsRead           bool        `json:"isRead,omitempty"`
	HasAttachments   bool        `json:"hasAttachments,omitempty"`
	ParentFolderID   string      `json:"parentFolderId,omitempty"`
	WebLink          string      `json:"webLink,omitempty"`
}

// SendMessageRequest is the body of POST /me/sendMail.
type SendMessageRequest struct {
	Message         Message `json:"message"`
	SaveToSentItems bool    `json:"saveToSentItems"`
}

// moveMessageRequest is the body of POST /me/messages/{id}/move.
type moveMessageRequest struct {
	DestinationID string `json:"destinationId"`
}

// MailFolder is a Graph mailFolder resource.
type MailFolder struct {
	ID               string `json:"id,omitempty"`
	DisplayName      string `json:"displayName"`
	ParentFolderID   string `json:"parentFolderId,omitempty"`
	ChildFolderCount int    `json:"childFolderCount,omitempty"`
	UnreadItemCount  int    `json:"unreadItemCount,omitempty"`
	TotalItemCount   int    `json:"totalItemCount,omitempty"`
}

// DateTimeTimeZone is a Graph dateTimeTimeZone resource. DateTime is in the
// ISO 8601 format without offset, e.g. "2026-09-01T09:00:00".
type DateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// Location is a Graph location resource.
type Location struct {
	DisplayName string `json:"displayName"`
}

// Attendee is a Graph attendee resource. Type is "required" or "optional".
type Attendee struct {
	EmailAddress EmailAddress `json:"emailAddress"`
	Type         string       `json:"type,omitempty"`
}

// Event is a Graph event resource.
type Event struct {
	ID              string            `json:"id,omitempty"`
	Subject         string            `json:"subject,omitempty"`
	Body            *ItemBody         `json:"body,omitempty"`
	BodyPreview     string            `json:"bodyPreview,omitempty"`
	Start           *DateTimeTimeZone `json:"start,omitempty"`
	End             *DateTimeTimeZone `json:"end,omitempty"`
	Location        *Location         `json:"location,omitempty"`
	Attendees       []Attendee        `json:"attendees,omitempty"`
	IsAllDay        bool              `json:"isAllDay,omitempty"`
	IsOnlineMeeting bool              `json:"isOnlineMeeting,omitempty"`
	Organizer       *Recipient        `json:"organizer,omitempty"`
	WebLink         string            `json:"webLink,omitempty"`
}

// RulePredicates is a Graph messageRulePredicates resource.
type RulePredicates struct {
	SenderContains     []string    `json:"senderContains,omitempty"`
	SubjectContains    []string    `json:"subjectContains,omitempty"`
	BodyContains       []string    `json:"bodyContains,omitempty"`
	FromAddresses      []Recipient `json:"fromAddresses,omitempty"`
	HasAttachments     *bool       `json:"hasAttachments,omitempty"`
	Importance         string      `json:"importance,omitempty"`
	IsAutomaticForward *bool       `json:"isAutomaticForward,omitempty"`
}

// RuleActions is a Graph messageRuleActions resource.
type RuleActions struct {
	MoveToFolder        string      `json:"moveToFolder,omitempty"`
	CopyToFolder        string      `json:"copyToFolder,omitempty"`
	Delete              *bool       `json:"delete,omitempty"`
	MarkAsRead          *bool       `json:"markAsRead,omitempty"`
	ForwardTo           []Recipient `json:"forwardTo,omitempty"`
	StopProcessingRules *bool       `json:"stopProcessingRules,omitempty"`
}

// MessageRule is a Graph messageRule resource (an inbox rule).
type MessageRule struct {
	ID          string          `json:"id,omitempty"`
	DisplayName string          `json:"displayName"`
	Sequence    int             `json:"sequence,omitempty"`
	IsEnabled   bool            `json:"isEnabled"`
	Conditions  *RulePredicates `json:"conditions,omitempty"`
	Actions     *RuleActions    `json:"actions,omitempty"`
}
