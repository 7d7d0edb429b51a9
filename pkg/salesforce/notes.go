package salesforce

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
)

// maxNoteTitleLen is the Salesforce Note.Title field length limit.
const maxNoteTitleLen = 80

// CreateDealNote creates a Note attached to the given deal (Opportunity)
// and returns the new note's Salesforce ID. Titles longer than the field
// limit are truncated.
func CreateDealNote(ctx context.Context, c Client, dealID, title, body string) (string, error) {
	if dealID == "" {
		return "", eris.New("sf: deal id is required")
	}
	if body == "" {
		return "", eris.New("sf: note body is required")
	}
	if len(title) > maxNoteTitleLen {
		title = title[:maxNoteTitleLen]
	}

	id, err := c.InsertOne(ctx, "Note", map[string]any{
		"Title":    title,
		"Body":     body,
		"ParentId": dealID,
	})
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("sf: create note on deal %s", dealID))
	}
	return id, nil
}
